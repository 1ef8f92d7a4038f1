// Package cargoconnect provides integration with the CargoConnect freight API.
package cargoconnect

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sony/gobreaker"
	"github.com/tournevent/cargoconnect/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const carrierName = shipper.ProviderName

const (
	opSubmitOrder = "submit_order"
	opLabelPage   = "label_page"
)

// Mode selects the target environment.
type Mode string

const (
	ModeTest       Mode = "test"
	ModeProduction Mode = "production"
)

// Config holds CargoConnect configuration.
type Config struct {
	APIToken    string
	BaseURL     string // production endpoint
	TestBaseURL string // staging endpoint used in ModeTest
	Mode        Mode
	UseMock     bool // When true, uses mock API client

	ConnectTimeout time.Duration
	RequestTimeout time.Duration

	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	BreakerFailures uint32        // consecutive transport failures before the breaker opens
	BreakerTimeout  time.Duration // open -> half-open delay
}

// EndpointURL returns the base URL for the configured mode.
func (c Config) EndpointURL() string {
	if c.Mode == ModeProduction || c.TestBaseURL == "" {
		return c.BaseURL
	}
	return c.TestBaseURL
}

// Validate checks that the credentials needed for real API calls are present.
func (c Config) Validate() error {
	if c.UseMock {
		return nil
	}
	if c.APIToken == "" {
		return shipper.NewShipperError(carrierName, shipper.KindValidation, shipper.CodeMissingAPIToken, "API token missing or invalid")
	}
	if c.EndpointURL() == "" {
		return shipper.NewShipperError(carrierName, shipper.KindValidation, shipper.CodeMissingAPIURL, "API URL missing or invalid")
	}
	if c.Mode != ModeTest && c.Mode != ModeProduction {
		return fmt.Errorf("unknown mode %q", c.Mode)
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeTest
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 3
	}
	if c.InitialBackoff == 0 {
		c.InitialBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff == 0 {
		c.MaxBackoff = 5 * time.Second
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	return c
}

// Metrics receives per-call carrier metrics.
type Metrics interface {
	RecordRequest(operation, carrier, status string, duration float64)
	RecordError(carrier, errorType string)
}

type nopMetrics struct{}

func (nopMetrics) RecordRequest(string, string, string, float64) {}
func (nopMetrics) RecordError(string, string)                    {}

// Client is the CargoConnect carrier client.
// It implements the shipper.Carrier interface and delegates
// API calls to the underlying APIClient (mock or HTTP).
type Client struct {
	config    Config
	apiClient APIClient
	breaker   *gobreaker.CircuitBreaker
	logger    *otelzap.Logger
	tracer    trace.Tracer
	metrics   Metrics
}

// New creates a new CargoConnect client.
// If cfg.UseMock is true, it uses a mock API client for testing.
// Otherwise, it uses the real HTTP API client.
func New(cfg Config, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	cfg = cfg.withDefaults()

	var apiClient APIClient
	if cfg.UseMock {
		apiClient = NewMockAPIClient()
	} else {
		apiClient = NewHTTPAPIClient(HTTPAPIClientConfig{
			BaseURL:        cfg.EndpointURL(),
			APIToken:       cfg.APIToken,
			ConnectTimeout: cfg.ConnectTimeout,
			Timeout:        cfg.RequestTimeout,
		})
	}

	return NewWithAPIClient(cfg, apiClient, logger, tracer)
}

// NewWithAPIClient creates a new CargoConnect client with a custom API client.
// This is useful for injecting mock clients in tests.
func NewWithAPIClient(cfg Config, apiClient APIClient, logger *otelzap.Logger, tracer trace.Tracer) *Client {
	cfg = cfg.withDefaults()
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/cargoconnect/pkg/cargoconnect")
	}

	c := &Client{
		config:    cfg,
		apiClient: apiClient,
		logger:    logger,
		tracer:    tracer,
		metrics:   nopMetrics{},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        carrierName,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return c
}

// WithMetrics sets the metrics sink.
func (c *Client) WithMetrics(m Metrics) *Client {
	if m != nil {
		c.metrics = m
	}
	return c
}

// Name returns the carrier name.
func (c *Client) Name() string {
	return carrierName
}

// SubmitOrder registers a shipment with CargoConnect.
// Transport failures and responses carrying neither label nor error are
// retried with exponential backoff. A carrier rejection, or a label arriving
// with unusable tracking data, is returned immediately.
func (c *Client) SubmitOrder(ctx context.Context, req *shipper.ShipmentRequest) (*shipper.Shipment, error) {
	ctx, span := c.tracer.Start(ctx, "cargoconnect.SubmitOrder", trace.WithAttributes(
		attribute.Int("order.id", req.OrderID),
		attribute.Int("order.package_count", len(req.Packages)),
	))
	defer span.End()

	apiReq, err := FormatShipmentRequest(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid request")
		return nil, err
	}

	c.logger.Ctx(ctx).Info("Submitting CargoConnect order",
		zap.Int("order_id", req.OrderID),
		zap.Int("package_count", len(apiReq.Packages)),
		zap.String("receiver_city", apiReq.Receiver.City),
	)

	start := time.Now()
	shipment, err := retry(ctx, c, opSubmitOrder, func() (*shipper.Shipment, error) {
		apiResp, err := c.guarded(func() (interface{}, error) {
			return c.apiClient.SubmitOrder(ctx, apiReq)
		})
		if err != nil {
			return nil, err
		}
		return submitResponseToShipper(apiResp.(*SubmitOrderResponse), len(apiReq.Packages))
	})
	c.observe(opSubmitOrder, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(shipper.KindOf(err)))
		return nil, err
	}

	span.SetAttributes(attribute.Int("shipment.tracking_count", len(shipment.TrackingNumbers)))
	return shipment, nil
}

// RetrieveLabelPage returns page `page` of a base64-encoded label document.
func (c *Client) RetrieveLabelPage(ctx context.Context, encodedLabel string, page int) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "cargoconnect.RetrieveLabelPage", trace.WithAttributes(
		attribute.Int("label.page", page),
	))
	defer span.End()

	apiReq := &LabelPageRequest{Base64: encodedLabel, Page: page}

	start := time.Now()
	pdf, err := retry(ctx, c, opLabelPage, func() ([]byte, error) {
		apiResp, err := c.guarded(func() (interface{}, error) {
			return c.apiClient.RetrieveLabelPage(ctx, apiReq)
		})
		if err != nil {
			return nil, err
		}
		return labelPageResponseToShipper(apiResp.(*LabelPageResponse), page)
	})
	c.observe(opLabelPage, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(shipper.KindOf(err)))
		return nil, err
	}
	return pdf, nil
}

// guarded runs an API call through the circuit breaker. Only failures worth
// retrying count against the breaker; a 4xx does not say the carrier is down.
func (c *Client) guarded(call func() (interface{}, error)) (interface{}, error) {
	var permanent error
	out, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := call()
		if err == nil {
			return resp, nil
		}
		classified := classifyAPIError(err)
		if !shipper.IsRetryable(classified) {
			permanent = classified
			return nil, nil
		}
		return nil, classified
	})
	if permanent != nil {
		return nil, permanent
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, shipper.NewTransportError(carrierName, "circuit breaker open").
			WithCause(shipper.ErrServiceUnavailable).
			WithRetryable(false)
	}
	return out, err
}

func (c *Client) observe(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = string(shipper.KindOf(err))
		if status == "" {
			status = "error"
		}
		c.metrics.RecordError(carrierName, status)
	}
	c.metrics.RecordRequest(operation, carrierName, status, time.Since(start).Seconds())
}

// retry runs fn with bounded exponential backoff. Non-retryable errors stop
// immediately.
func retry[T any](ctx context.Context, c *Client, operation string, fn func() (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.config.InitialBackoff
	b.MaxInterval = c.config.MaxBackoff

	res, err := backoff.Retry(ctx, func() (T, error) {
		v, err := fn()
		if err != nil && !shipper.IsRetryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(c.config.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			c.logger.Ctx(ctx).Warn("Retrying CargoConnect call",
				zap.String("operation", operation),
				zap.Duration("delay", next),
				zap.Error(err),
			)
		}),
	)

	var perm *backoff.PermanentError
	if errors.As(err, &perm) {
		err = perm.Err
	}
	if err != nil && shipper.KindOf(err) == "" {
		// context cancellation or deadline from the caller
		err = shipper.NewTransportError(carrierName, operation+" aborted").WithCause(err).WithRetryable(false)
	}
	return res, err
}

// ============================================================================
// Conversion helpers: API models -> Shipper models
// ============================================================================

func submitResponseToShipper(resp *SubmitOrderResponse, packageCount int) (*shipper.Shipment, error) {
	if resp.Error != nil {
		return nil, shipper.NewBusinessError(carrierName, *resp.Error)
	}
	if resp.Label == nil {
		return nil, shipper.NewMalformedResponseError(carrierName, "response has neither label nor error")
	}

	// A label means the carrier booked the shipment; resubmitting would book it again.
	pdf, err := base64.StdEncoding.DecodeString(*resp.Label)
	if err != nil {
		return nil, shipper.NewMalformedResponseError(carrierName, "label is not valid base64").
			WithCause(err).WithRetryable(false)
	}
	if len(pdf) == 0 {
		return nil, shipper.NewMalformedResponseError(carrierName, "label is empty").WithRetryable(false)
	}
	if len(resp.Tracking) != packageCount {
		return nil, shipper.NewMalformedResponseError(carrierName,
			fmt.Sprintf("got %d tracking numbers for %d packages", len(resp.Tracking), packageCount)).
			WithRetryable(false)
	}

	return &shipper.Shipment{
		Label:           pdf,
		EncodedLabel:    *resp.Label,
		TrackingNumbers: append([]string(nil), resp.Tracking...),
	}, nil
}

func labelPageResponseToShipper(resp *LabelPageResponse, page int) ([]byte, error) {
	if resp.Label == "" {
		return nil, shipper.NewMalformedResponseError(carrierName, fmt.Sprintf("label page %d is empty", page))
	}
	pdf, err := base64.StdEncoding.DecodeString(resp.Label)
	if err != nil {
		return nil, shipper.NewMalformedResponseError(carrierName, fmt.Sprintf("label page %d is not valid base64", page)).WithCause(err)
	}
	return pdf, nil
}

// classifyAPIError maps an APIClient error onto the shipper taxonomy.
func classifyAPIError(err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return shipper.NewTransportError(carrierName, "request aborted").WithCause(err).WithRetryable(false)
		}
		return shipper.NewTransportError(carrierName, err.Error()).WithCause(err)
	}

	e := shipper.NewTransportError(carrierName, apiErr.Message).
		WithStatusCode(apiErr.StatusCode).
		WithCause(apiErr)

	switch {
	case apiErr.StatusCode == 0:
		// network error or timeout
	case apiErr.Code == "MALFORMED_JSON":
	case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
		e.Cause = fmt.Errorf("%w: %v", shipper.ErrAuthenticationFailed, apiErr)
		e.Retryable = false
	case apiErr.StatusCode == http.StatusTooManyRequests:
		e.Cause = fmt.Errorf("%w: %v", shipper.ErrRateLimitExceeded, apiErr)
	case apiErr.StatusCode == http.StatusRequestTimeout, apiErr.StatusCode >= 500:
	default:
		e.Retryable = false
	}
	return e
}
