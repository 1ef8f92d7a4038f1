package shipper

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure for logging and retry decisions.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindTransport         ErrorKind = "transport"
	KindBusiness          ErrorKind = "business"
	KindMalformedResponse ErrorKind = "malformed_response"
	KindStorage           ErrorKind = "storage"
)

// Status codes reported to the host in result messages.
const (
	CodeMissingAPIToken   = "0001"
	CodeMissingAPIURL     = "0002"
	CodeLabelCreated      = "1000"
	CodeNoPackages        = "1001"
	CodeOrderValidation   = "1002"
	CodeInvalidPickup     = "1003"
	CodeInvalidDelivery   = "1004"
	CodeAlreadyRegistered = "1005"
	CodeOther             = "9999"
)

// ShipperError represents a failure while registering a shipment.
type ShipperError struct {
	Carrier    string
	Kind       ErrorKind
	Code       string
	Message    string
	StatusCode int
	Retryable  bool
	Cause      error
}

// Error implements the error interface.
func (e *ShipperError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s %s error (%s): %s: %v", e.Carrier, e.Kind, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s %s error (%s): %s", e.Carrier, e.Kind, e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ShipperError) Unwrap() error {
	return e.Cause
}

// Is matches on Code, and on Kind when the target sets one.
func (e *ShipperError) Is(target error) bool {
	t, ok := target.(*ShipperError)
	if !ok {
		return false
	}
	if t.Kind != "" && e.Kind != t.Kind {
		return false
	}
	return e.Code == t.Code
}

// NewShipperError creates a new ShipperError.
func NewShipperError(carrier string, kind ErrorKind, code, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports a missing or invalid field. code selects the
// host status code (pickup, delivery, package).
func NewValidationError(code, field string) *ShipperError {
	return &ShipperError{
		Carrier: ProviderName,
		Kind:    KindValidation,
		Code:    code,
		Message: fmt.Sprintf("missing or invalid field %q", field),
	}
}

// NewTransportError reports a network failure, non-2xx status or undecodable body.
// Transport errors are retryable unless marked otherwise.
func NewTransportError(carrier, message string) *ShipperError {
	return &ShipperError{
		Carrier:   carrier,
		Kind:      KindTransport,
		Code:      CodeOther,
		Message:   message,
		Retryable: true,
	}
}

// NewBusinessError wraps an error reported by the carrier in a 200 response.
func NewBusinessError(carrier, message string) *ShipperError {
	return &ShipperError{
		Carrier: carrier,
		Kind:    KindBusiness,
		Code:    CodeOrderValidation,
		Message: message,
	}
}

// NewMalformedResponseError reports a carrier response that is neither a
// success nor an error.
func NewMalformedResponseError(carrier, message string) *ShipperError {
	return &ShipperError{
		Carrier:   carrier,
		Kind:      KindMalformedResponse,
		Code:      CodeOther,
		Message:   message,
		Retryable: true,
	}
}

// NewStorageError reports a label upload/fetch or host package update failure.
func NewStorageError(message string) *ShipperError {
	return &ShipperError{
		Carrier: ProviderName,
		Kind:    KindStorage,
		Code:    CodeOther,
		Message: message,
	}
}

// WithCause adds a cause to the error.
func (e *ShipperError) WithCause(err error) *ShipperError {
	e.Cause = err
	return e
}

// WithStatusCode adds an HTTP status code to the error.
func (e *ShipperError) WithStatusCode(code int) *ShipperError {
	e.StatusCode = code
	return e
}

// WithRetryable marks the error as retryable.
func (e *ShipperError) WithRetryable(retryable bool) *ShipperError {
	e.Retryable = retryable
	return e
}

// Sentinel errors for common shipping scenarios.
var (
	// ErrNoPackages indicates an order has no packages to submit.
	ErrNoPackages = errors.New("order has no packages")

	// ErrInvalidAddress indicates the address is invalid or incomplete.
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidPackage indicates package dimensions or weight are invalid.
	ErrInvalidPackage = errors.New("invalid package")

	// ErrOrderNotFound indicates the order ID was not found.
	ErrOrderNotFound = errors.New("order not found")

	// ErrLabelNotAvailable indicates no label is stored for a package.
	ErrLabelNotAvailable = errors.New("label not available")

	// ErrAlreadyRegistered indicates the order already has a registered shipment.
	ErrAlreadyRegistered = errors.New("shipment already registered")

	// ErrNoOrderIDs indicates no order ids could be resolved from the input.
	ErrNoOrderIDs = errors.New("no order ids")

	// ErrServiceUnavailable indicates the carrier service is temporarily unavailable.
	ErrServiceUnavailable = errors.New("service unavailable")

	// ErrRateLimitExceeded indicates the carrier rate limit was exceeded.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrAuthenticationFailed indicates carrier authentication failed.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// IsRetryable returns true if the error is retryable.
func IsRetryable(err error) bool {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Retryable
	}
	return errors.Is(err, ErrServiceUnavailable) || errors.Is(err, ErrRateLimitExceeded)
}

// KindOf returns the kind of a ShipperError in the chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) {
		return shipperErr.Kind
	}
	return ""
}

// CodeOf returns the host status code for err. Errors outside the taxonomy map to CodeOther.
func CodeOf(err error) string {
	var shipperErr *ShipperError
	if errors.As(err, &shipperErr) && shipperErr.Code != "" {
		return shipperErr.Code
	}
	if errors.Is(err, ErrNoPackages) {
		return CodeNoPackages
	}
	if errors.Is(err, ErrAlreadyRegistered) {
		return CodeAlreadyRegistered
	}
	return CodeOther
}
