// Package shipment runs the shipment registration workflow: it resolves
// orders from the host, submits them to the carrier, stores the returned
// labels and records the shipping status per order.
package shipment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tournevent/cargoconnect/internal/events"
	"github.com/tournevent/cargoconnect/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Registration outcomes reported to Metrics.
const (
	OutcomeSuccess           = "success"
	OutcomeFailed            = "failed"
	OutcomeAlreadyRegistered = "already_registered"
)

// Metrics receives workflow-level metrics.
type Metrics interface {
	RecordRegistration(outcome string)
	RecordLabelStoreFailure()
}

type nopMetrics struct{}

func (nopMetrics) RecordRegistration(string) {}
func (nopMetrics) RecordLabelStoreFailure()  {}

// Config holds workflow settings.
type Config struct {
	// DefaultPickup fills sender fields the warehouse leaves empty.
	DefaultPickup shipper.ShippingParty

	// Workers bounds concurrent order processing. 1 or less processes
	// orders sequentially.
	Workers int

	LabelNamespace string

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

// Deps are the collaborators of the workflow. Events, Tracer and Metrics
// are optional.
type Deps struct {
	Carrier      shipper.Carrier
	Orders       shipper.OrderSource
	PackageTypes shipper.PackageTypeResolver
	Labels       shipper.BlobStore
	Status       shipper.StatusSink
	Events       events.Publisher
	Logger       *otelzap.Logger
	Tracer       trace.Tracer
	Metrics      Metrics
}

// Service implements the batch operations exposed to the host.
type Service struct {
	cfg      Config
	carrier  shipper.Carrier
	orders   shipper.OrderSource
	types    shipper.PackageTypeResolver
	labels   *LabelStore
	status   shipper.StatusSink
	recorder *Recorder
	logger   *otelzap.Logger
	tracer   trace.Tracer
	metrics  Metrics
}

// New creates a new Service.
func New(cfg Config, deps Deps) *Service {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.LabelNamespace == "" {
		cfg.LabelNamespace = DefaultLabelNamespace
	}
	tracer := deps.Tracer
	if tracer == nil {
		tracer = otel.Tracer("github.com/tournevent/cargoconnect/internal/shipment")
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}

	return &Service{
		cfg:      cfg,
		carrier:  deps.Carrier,
		orders:   deps.Orders,
		types:    deps.PackageTypes,
		labels:   NewLabelStore(deps.Labels, cfg.LabelNamespace),
		status:   deps.Status,
		recorder: NewRecorder(deps.Status, deps.Events, deps.Logger, cfg.Now),
		logger:   deps.Logger,
		tracer:   tracer,
		metrics:  metrics,
	}
}

// registration is a successful order awaiting its status record.
type registration struct {
	shipmentDate time.Time
	packages     []shipper.PackageLabel
}

// RegisterShipments registers every order with the carrier and returns one
// result per order id. A failing order never stops the batch; the call
// itself only fails when no order id is given.
//
// Status records are written after the whole batch, for successful orders
// only. A failed status write is logged and does not change the result.
func (s *Service) RegisterShipments(ctx context.Context, orderIDs []int) (map[int]*shipper.ShipmentResult, error) {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return nil, shipper.ErrNoOrderIDs
	}

	ctx, span := s.tracer.Start(ctx, "shipment.RegisterShipments", trace.WithAttributes(
		attribute.Int("batch.size", len(ids)),
		attribute.Int("batch.workers", s.cfg.Workers),
	))
	defer span.End()

	shipmentDate := midnight(s.cfg.Now())

	results := make(map[int]*shipper.ShipmentResult, len(ids))
	registered := make(map[int]registration)
	var mu sync.Mutex

	process := func(orderID int) {
		res, reg := s.registerOrder(ctx, orderID, shipmentDate)
		mu.Lock()
		defer mu.Unlock()
		results[orderID] = res
		if reg != nil {
			registered[orderID] = *reg
		}
	}

	if s.cfg.Workers <= 1 {
		for _, id := range ids {
			process(id)
		}
	} else {
		// No shared context: one order failing must not cancel its siblings.
		var g errgroup.Group
		g.SetLimit(s.cfg.Workers)
		for _, id := range ids {
			id := id
			g.Go(func() error {
				process(id)
				return nil
			})
		}
		_ = g.Wait()
	}

	for _, id := range ids {
		reg, ok := registered[id]
		if !ok {
			continue
		}
		if err := s.recorder.Save(ctx, id, reg.shipmentDate, reg.packages); err != nil {
			s.logger.Ctx(ctx).Error("Failed to record shipping information",
				zap.Int("order_id", id),
				zap.Error(err),
			)
		}
	}

	span.SetAttributes(attribute.Int("batch.registered", len(registered)))
	s.logger.Ctx(ctx).Info("Shipment batch processed",
		zap.Int("orders", len(ids)),
		zap.Int("registered", len(registered)),
	)
	return results, nil
}

// DeleteShipments resets the stored shipping information of each order.
// The carrier is not contacted.
func (s *Service) DeleteShipments(ctx context.Context, orderIDs []int) (map[int]*shipper.ShipmentResult, error) {
	ids := uniqueIDs(orderIDs)
	if len(ids) == 0 {
		return nil, shipper.ErrNoOrderIDs
	}

	ctx, span := s.tracer.Start(ctx, "shipment.DeleteShipments", trace.WithAttributes(
		attribute.Int("batch.size", len(ids)),
	))
	defer span.End()

	results := make(map[int]*shipper.ShipmentResult, len(ids))
	for _, id := range ids {
		if err := s.recorder.Reset(ctx, id); err != nil {
			span.RecordError(err)
			s.logger.Ctx(ctx).Error("Failed to reset shipment",
				zap.Int("order_id", id),
				zap.Error(err),
			)
			results[id] = failedResult(err)
			continue
		}
		results[id] = &shipper.ShipmentResult{
			Success:  true,
			Message:  msgReset,
			Packages: []shipper.PackageLabel{},
		}
	}
	return results, nil
}

func (s *Service) registerOrder(ctx context.Context, orderID int, shipmentDate time.Time) (*shipper.ShipmentResult, *registration) {
	ctx, span := s.tracer.Start(ctx, "shipment.registerOrder", trace.WithAttributes(
		attribute.Int("order.id", orderID),
	))
	defer span.End()

	packages, err := s.processOrder(ctx, orderID, shipmentDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, shipper.CodeOf(err))
		s.logFailure(ctx, orderID, err)

		outcome := OutcomeFailed
		if errors.Is(err, shipper.ErrAlreadyRegistered) {
			outcome = OutcomeAlreadyRegistered
		}
		s.metrics.RecordRegistration(outcome)
		return failedResult(err), nil
	}

	s.metrics.RecordRegistration(OutcomeSuccess)
	s.logger.Ctx(ctx).Info("Shipment registered",
		zap.Int("order_id", orderID),
		zap.Int("package_count", len(packages)),
	)
	return successResult(packages), &registration{shipmentDate: shipmentDate, packages: packages}
}

// processOrder drives one order from lookup to stored labels.
func (s *Service) processOrder(ctx context.Context, orderID int, shipmentDate time.Time) ([]shipper.PackageLabel, error) {
	if err := s.checkOpen(ctx, orderID); err != nil {
		return nil, err
	}

	order, err := s.orders.FindOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("find order %d: %w", orderID, err)
	}
	packages, err := s.orders.ListPackages(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list packages of order %d: %w", orderID, err)
	}
	if len(packages) == 0 {
		return nil, fmt.Errorf("order %d: %w", orderID, shipper.ErrNoPackages)
	}

	packageTypes, err := s.resolvePackageTypes(ctx, packages)
	if err != nil {
		return nil, err
	}

	req := BuildShipmentRequest(order, packages, packageTypes, shipmentDate, s.cfg.DefaultPickup)
	shipment, err := s.carrier.SubmitOrder(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(shipment.TrackingNumbers) != len(packages) {
		return nil, shipper.NewMalformedResponseError(s.carrier.Name(),
			fmt.Sprintf("got %d tracking numbers for %d packages", len(shipment.TrackingNumbers), len(packages)))
	}

	return s.storeLabels(ctx, orderID, packages, shipment)
}

// checkOpen rejects orders whose shipping status is set and not open.
func (s *Service) checkOpen(ctx context.Context, orderID int) error {
	info, err := s.status.Get(ctx, orderID)
	if err != nil {
		return fmt.Errorf("get shipping information of order %d: %w", orderID, err)
	}
	if info != nil && info.Status != "" && info.Status != shipper.StatusOpen {
		return fmt.Errorf("order %d is %s: %w", orderID, info.Status, shipper.ErrAlreadyRegistered)
	}
	return nil
}

func (s *Service) resolvePackageTypes(ctx context.Context, packages []shipper.OrderPackage) (map[int]*shipper.PackageType, error) {
	out := make(map[int]*shipper.PackageType, len(packages))
	for _, pkg := range packages {
		if _, seen := out[pkg.PackageTypeID]; seen {
			continue
		}
		t, err := s.types.FindPackageType(ctx, pkg.PackageTypeID)
		if err != nil {
			return nil, fmt.Errorf("find package type %d: %w", pkg.PackageTypeID, err)
		}
		if t == nil {
			s.logger.Ctx(ctx).Debug("Unknown package type, sending without dimensions",
				zap.Int("package_id", pkg.ID),
				zap.Int("package_type_id", pkg.PackageTypeID),
			)
		}
		out[pkg.PackageTypeID] = t
	}
	return out, nil
}

// storeLabels stores one label per package and writes the tracking number
// and label path back to the host. Package i receives tracking number i.
// With more than one package the carrier document is split into pages,
// page i+1 belonging to package i.
func (s *Service) storeLabels(ctx context.Context, orderID int, packages []shipper.OrderPackage, shipment *shipper.Shipment) ([]shipper.PackageLabel, error) {
	paginate := len(packages) > 1
	items := make([]shipper.PackageLabel, 0, len(packages))

	for i, pkg := range packages {
		tracking := shipment.TrackingNumbers[i]

		pdf := shipment.Label
		if paginate {
			page, err := s.carrier.RetrieveLabelPage(ctx, shipment.EncodedLabel, i+1)
			if err != nil {
				return nil, s.storageFailure(ctx, orderID, pkg.ID, tracking, "retrieve label page", err)
			}
			pdf = page
		}

		obj, url, err := s.labels.Store(ctx, pkg.ID, pdf)
		if err != nil {
			return nil, s.storageFailure(ctx, orderID, pkg.ID, tracking, "store label", err)
		}
		if err := s.orders.UpdatePackage(ctx, pkg.ID, tracking, obj.Path); err != nil {
			return nil, s.storageFailure(ctx, orderID, pkg.ID, tracking, "update package", err)
		}

		items = append(items, shipper.PackageLabel{LabelURL: url, ShipmentNumber: tracking})
	}
	return items, nil
}

// storageFailure logs a failure that occurred after the carrier accepted the
// shipment. The carrier and host disagree from here on and must be
// reconciled by hand.
func (s *Service) storageFailure(ctx context.Context, orderID, packageID int, tracking, step string, err error) error {
	s.metrics.RecordLabelStoreFailure()
	s.logger.Ctx(ctx).Error("Label handling failed after carrier registration",
		zap.Int("order_id", orderID),
		zap.Int("package_id", packageID),
		zap.String("tracking_number", tracking),
		zap.String("step", step),
		zap.Error(err),
	)
	return shipper.NewStorageError(fmt.Sprintf("%s for package %d", step, packageID)).WithCause(err)
}

func (s *Service) logFailure(ctx context.Context, orderID int, err error) {
	logger := s.logger.Ctx(ctx)
	fields := []zap.Field{
		zap.Int("order_id", orderID),
		zap.String("code", shipper.CodeOf(err)),
		zap.Error(err),
	}

	switch kind := shipper.KindOf(err); {
	case kind == shipper.KindStorage:
		// logged with reconciliation context in storageFailure
		return
	case kind == shipper.KindMalformedResponse:
		logger.Error("Unexpected carrier response", append(fields, zap.Bool("anomaly", true))...)
	case kind == shipper.KindValidation, kind == shipper.KindBusiness,
		errors.Is(err, shipper.ErrNoPackages), errors.Is(err, shipper.ErrAlreadyRegistered):
		logger.Warn("Shipment rejected", fields...)
	default:
		logger.Error("Shipment registration failed", fields...)
	}
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
