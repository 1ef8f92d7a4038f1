package cargoconnect

import (
	"context"
	"fmt"
)

// APIClient defines the CargoConnect REST operations.
// Implementations return *APIError for transport-level failures only;
// a carrier-reported rejection arrives as SubmitOrderResponse.Error.
type APIClient interface {
	// SubmitOrder posts a shipment to /submit-order.
	SubmitOrder(ctx context.Context, req *SubmitOrderRequest) (*SubmitOrderResponse, error)

	// RetrieveLabelPage posts a label document to /label-page and returns one page of it.
	RetrieveLabelPage(ctx context.Context, req *LabelPageRequest) (*LabelPageResponse, error)
}

// ============================================================================
// API Request/Response Types
// ============================================================================

// SubmitOrderRequest is the body of POST /submit-order.
type SubmitOrderRequest struct {
	OrderID             int       `json:"orderId"`
	PickupDate          string    `json:"pickupDate"` // YYYY-MM-DD
	Sender              Party     `json:"sender"`
	Receiver            Party     `json:"receiver"`
	ShippingProfileName string    `json:"shippingProfileName"`
	ShippingProfileID   int       `json:"shippingProfileId"`
	Packages            []Package `json:"packages"`
	Items               []Item    `json:"items"`
}

// Party is a sender or receiver address.
type Party struct {
	FirstName string  `json:"firstname"`
	LastName  string  `json:"lastname"`
	Street    string  `json:"street"`
	Country   string  `json:"country"`
	Zip       string  `json:"zip"`
	City      string  `json:"city"`
	Phone     string  `json:"phone"`
	Email     *string `json:"email"`
	Company   *string `json:"company"`
}

// Package is one physical package. Dimensions are null when unknown.
type Package struct {
	Package  string   `json:"package"`
	Length   *float64 `json:"length"`
	Width    *float64 `json:"width"`
	Height   *float64 `json:"height"`
	Weight   float64  `json:"weight"` // kilograms
	Colli    int      `json:"colli"`
	Contents string   `json:"contents"`
}

// Item is one order line.
type Item struct {
	Number     string  `json:"number"`
	Price      float64 `json:"price"`
	Quantity   int     `json:"quantity"`
	Name       string  `json:"name"`
	VariantSKU string  `json:"variant_sku"`
}

// SubmitOrderResponse is either {"error": "..."} or {"label": "...", "tracking": [...]}.
// Error and Label are pointers so a missing key can be told apart from an empty one.
type SubmitOrderResponse struct {
	Error    *string  `json:"error,omitempty"`
	Label    *string  `json:"label,omitempty"`
	Tracking []string `json:"tracking,omitempty"`
}

// LabelPageRequest is the body of POST /label-page.
type LabelPageRequest struct {
	Base64 string `json:"base64"`
	Page   int    `json:"page"`
}

// LabelPageResponse carries one base64-encoded label page.
type LabelPageResponse struct {
	Label string `json:"label"`
}

// APIError is a transport-level failure: network error, non-2xx status or
// an undecodable body.
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (HTTP %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
