package cargoconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	submitOrderPath = "/submit-order"
	labelPagePath   = "/label-page"

	defaultConnectTimeout = 5 * time.Second
	defaultRequestTimeout = 10 * time.Second
)

// HTTPAPIClient is the production implementation of APIClient using HTTP.
type HTTPAPIClient struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
}

// HTTPAPIClientConfig holds configuration for the HTTP client.
type HTTPAPIClientConfig struct {
	BaseURL        string
	APIToken       string
	ConnectTimeout time.Duration // dial and TLS handshake
	Timeout        time.Duration // whole request including body
}

// NewHTTPAPIClient creates a new HTTP-based API client for production use.
func NewHTTPAPIClient(cfg HTTPAPIClientConfig) *HTTPAPIClient {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout == 0 {
		connectTimeout = defaultConnectTimeout
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultRequestTimeout
	}

	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: connectTimeout,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}

	return &HTTPAPIClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// SubmitOrder posts the shipment. HTTP 200 with an "error" field is a
// carrier rejection and is returned as a response, not an error.
func (c *HTTPAPIClient) SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*SubmitOrderResponse, error) {
	var result SubmitOrderResponse
	if err := c.post(ctx, submitOrderPath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RetrieveLabelPage posts the full label document and a page number.
func (c *HTTPAPIClient) RetrieveLabelPage(ctx context.Context, req *LabelPageRequest) (*LabelPageResponse, error) {
	var result LabelPageResponse
	if err := c.post(ctx, labelPagePath, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// post performs an authenticated JSON POST and decodes a 2xx body into out.
func (c *HTTPAPIClient) post(ctx context.Context, path string, body, out interface{}) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.parseError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Code: "READ_ERROR", Message: err.Error(), StatusCode: resp.StatusCode}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &APIError{
			Code:       "MALFORMED_JSON",
			Message:    fmt.Sprintf("failed to decode %s response: %v", path, err),
			StatusCode: resp.StatusCode,
		}
	}
	return nil
}

// doRequest performs an HTTP request with proper headers and authentication.
func (c *HTTPAPIClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	req.Header.Set("X-Request-ID", uuid.New().String())
	req.Header.Set("User-Agent", "cargoconnect-bridge/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		code := "NETWORK_ERROR"
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			code = "TIMEOUT"
		}
		return nil, &APIError{Code: code, Message: err.Error()}
	}
	return resp, nil
}

// parseError extracts error information from a non-2xx HTTP response.
func (c *HTTPAPIClient) parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var simpleErr struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &simpleErr); err == nil {
		if simpleErr.Error != "" {
			msg = simpleErr.Error
		} else if simpleErr.Message != "" {
			msg = simpleErr.Message
		}
	}
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	return &APIError{
		Code:       fmt.Sprintf("HTTP_%d", resp.StatusCode),
		Message:    msg,
		StatusCode: resp.StatusCode,
	}
}

// Ensure HTTPAPIClient implements APIClient interface
var _ APIClient = (*HTTPAPIClient)(nil)
