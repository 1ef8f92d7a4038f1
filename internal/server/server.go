// Package server exposes the shipment batch operations over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tournevent/cargoconnect/internal/telemetry"
	"github.com/tournevent/cargoconnect/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Shipments is the workflow the server exposes.
type Shipments interface {
	RegisterShipments(ctx context.Context, orderIDs []int) (map[int]*shipper.ShipmentResult, error)
	DeleteShipments(ctx context.Context, orderIDs []int) (map[int]*shipper.ShipmentResult, error)
	GetLabels(ctx context.Context, orderIDs []int) ([][]byte, error)
	GetOrderLabel(ctx context.Context, orderID int) ([]byte, error)
}

// Config holds server configuration.
type Config struct {
	Port int

	// RequestTimeout bounds a single request, batch included.
	RequestTimeout time.Duration
}

// Server is the HTTP server for the shipment service.
type Server struct {
	cfg       Config
	shipments Shipments
	logger    *otelzap.Logger
	metrics   *telemetry.Metrics
	gatherer  prometheus.Gatherer
}

// New creates a new server instance. /metrics serves gatherer.
func New(cfg Config, shipments Shipments, logger *otelzap.Logger, metrics *telemetry.Metrics, gatherer prometheus.Gatherer) *Server {
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 5 * time.Minute
	}
	return &Server{
		cfg:       cfg,
		shipments: shipments,
		logger:    logger,
		metrics:   metrics,
		gatherer:  gatherer,
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Post("/shipments/register", s.handleRegister)
		r.Post("/shipments/delete", s.handleDelete)
		r.Post("/labels", s.handleLabels)
		r.Get("/orders/{orderID}/labels", s.handleOrderLabel)
	})

	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      s.cfg.RequestTimeout + 30*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// observe records request metrics by route pattern and logs each request.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(route, strconv.Itoa(status))
		}
		s.logger.Ctx(r.Context()).Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
