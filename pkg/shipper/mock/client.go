// Package mock provides a mock carrier implementation for testing.
package mock

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

// LabelPageCall records one RetrieveLabelPage invocation.
type LabelPageCall struct {
	EncodedLabel string
	Page         int
}

// Client is a scriptable shipper.Carrier. Without hooks it accepts every
// order and returns one tracking number per package.
type Client struct {
	name string

	SimulateErrors bool

	OnSubmitOrder       func(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error)
	OnRetrieveLabelPage func(ctx context.Context, encodedLabel string, page int) ([]byte, error)

	mu        sync.Mutex
	submitted []*shipper.ShipmentRequest
	pages     []LabelPageCall
}

// New creates a new mock carrier.
func New(name string) *Client {
	return &Client{name: name}
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return c.name
}

// SubmitOrder records the request and returns a mock shipment.
func (c *Client) SubmitOrder(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error) {
	c.mu.Lock()
	c.submitted = append(c.submitted, req)
	c.mu.Unlock()

	if c.SimulateErrors {
		return nil, shipper.NewTransportError(c.name, "simulated transport error")
	}
	if c.OnSubmitOrder != nil {
		return c.OnSubmitOrder(ctx, req)
	}

	label := []byte(fmt.Sprintf("%%PDF-1.4 mock label order %d", req.OrderID))
	tracking := make([]string, len(req.Packages))
	for i := range req.Packages {
		tracking[i] = fmt.Sprintf("MOCK-%d-%d", req.OrderID, i+1)
	}

	return &shipper.Shipment{
		Label:           label,
		EncodedLabel:    base64.StdEncoding.EncodeToString(label),
		TrackingNumbers: tracking,
	}, nil
}

// RetrieveLabelPage records the call and returns a one-page document
// naming the page.
func (c *Client) RetrieveLabelPage(ctx context.Context, encodedLabel string, page int) ([]byte, error) {
	c.mu.Lock()
	c.pages = append(c.pages, LabelPageCall{EncodedLabel: encodedLabel, Page: page})
	c.mu.Unlock()

	if c.SimulateErrors {
		return nil, shipper.NewTransportError(c.name, "simulated transport error")
	}
	if c.OnRetrieveLabelPage != nil {
		return c.OnRetrieveLabelPage(ctx, encodedLabel, page)
	}
	return PageLabel(page), nil
}

// PageLabel is the document the default RetrieveLabelPage returns for page.
func PageLabel(page int) []byte {
	return []byte(fmt.Sprintf("%%PDF-1.4 mock label page %d", page))
}

// Submitted returns the shipment requests received so far.
func (c *Client) Submitted() []*shipper.ShipmentRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*shipper.ShipmentRequest(nil), c.submitted...)
}

// LabelPageCalls returns the label page requests received so far.
func (c *Client) LabelPageCalls() []LabelPageCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]LabelPageCall(nil), c.pages...)
}

// Ensure Client implements the Carrier interface
var _ shipper.Carrier = (*Client)(nil)
