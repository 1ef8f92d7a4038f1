package cargoconnect

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// samplePDF is a minimal single-page PDF returned by the mock.
const samplePDF = "%PDF-1.4\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
	"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
	"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 288 432]>>endobj\n" +
	"trailer<</Root 1 0 R>>\n%%EOF\n"

// MockAPIClient is a mock implementation of APIClient for testing.
type MockAPIClient struct {
	SimulateErrors  bool
	SimulateLatency time.Duration

	OnSubmitOrder       func(ctx context.Context, req *SubmitOrderRequest) (*SubmitOrderResponse, error)
	OnRetrieveLabelPage func(ctx context.Context, req *LabelPageRequest) (*LabelPageResponse, error)

	mu             sync.Mutex
	submitCalls    []*SubmitOrderRequest
	labelPageCalls []*LabelPageRequest
}

// NewMockAPIClient creates a new mock API client with default behavior.
func NewMockAPIClient() *MockAPIClient {
	return &MockAPIClient{}
}

// SubmitOrder returns a label and one tracking number per package.
func (m *MockAPIClient) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*SubmitOrderResponse, error) {
	m.mu.Lock()
	m.submitCalls = append(m.submitCalls, req)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK_ERROR", Message: "Simulated API error", StatusCode: 503}
	}

	if m.OnSubmitOrder != nil {
		return m.OnSubmitOrder(ctx, req)
	}

	label := base64.StdEncoding.EncodeToString([]byte(samplePDF))
	tracking := make([]string, len(req.Packages))
	for i := range req.Packages {
		tracking[i] = fmt.Sprintf("CC%d%s", req.OrderID, uuid.New().String()[:8])
	}

	return &SubmitOrderResponse{
		Label:    &label,
		Tracking: tracking,
	}, nil
}

// RetrieveLabelPage returns the input document unchanged.
func (m *MockAPIClient) RetrieveLabelPage(ctx context.Context, req *LabelPageRequest) (*LabelPageResponse, error) {
	m.mu.Lock()
	m.labelPageCalls = append(m.labelPageCalls, req)
	m.mu.Unlock()

	if err := m.wait(ctx); err != nil {
		return nil, err
	}

	if m.SimulateErrors {
		return nil, &APIError{Code: "MOCK_ERROR", Message: "Simulated API error", StatusCode: 503}
	}

	if m.OnRetrieveLabelPage != nil {
		return m.OnRetrieveLabelPage(ctx, req)
	}

	return &LabelPageResponse{Label: req.Base64}, nil
}

// SubmitCalls returns the submit-order requests received so far.
func (m *MockAPIClient) SubmitCalls() []*SubmitOrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*SubmitOrderRequest(nil), m.submitCalls...)
}

// LabelPageCalls returns the label-page requests received so far.
func (m *MockAPIClient) LabelPageCalls() []*LabelPageRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*LabelPageRequest(nil), m.labelPageCalls...)
}

func (m *MockAPIClient) wait(ctx context.Context) error {
	if m.SimulateLatency <= 0 {
		return nil
	}
	select {
	case <-time.After(m.SimulateLatency):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure MockAPIClient implements APIClient interface
var _ APIClient = (*MockAPIClient)(nil)
