package shipment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tournevent/cargoconnect/internal/events"
	"github.com/tournevent/cargoconnect/pkg/shipper"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Recorder writes shipping information back to the host and announces it.
type Recorder struct {
	status    shipper.StatusSink
	publisher events.Publisher
	logger    *otelzap.Logger
	now       func() time.Time
}

// NewRecorder creates a recorder. A nil publisher discards events.
func NewRecorder(status shipper.StatusSink, publisher events.Publisher, logger *otelzap.Logger, now func() time.Time) *Recorder {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if now == nil {
		now = time.Now
	}
	return &Recorder{status: status, publisher: publisher, logger: logger, now: now}
}

// ShippingInformation builds the status record for a registered order.
func ShippingInformation(orderID int, shipmentDate, registeredAt time.Time, items []shipper.PackageLabel) *shipper.ShippingInformation {
	numbers := make([]string, len(items))
	for i, it := range items {
		numbers[i] = it.ShipmentNumber
	}
	return &shipper.ShippingInformation{
		OrderID:        orderID,
		TransactionID:  strings.Join(numbers, ","),
		Provider:       shipper.ProviderName,
		Status:         shipper.StatusRegistered,
		ShippingCosts:  0,
		AdditionalData: items,
		RegistrationAt: registeredAt.Format(time.RFC3339),
		ShipmentAt:     midnight(shipmentDate).Format(time.RFC3339),
	}
}

// Save persists the status record of a registered order and publishes a
// shipment.registered event. A publish failure is logged only.
func (r *Recorder) Save(ctx context.Context, orderID int, shipmentDate time.Time, items []shipper.PackageLabel) error {
	now := r.now()
	info := ShippingInformation(orderID, shipmentDate, now, items)
	if err := r.status.Save(ctx, info); err != nil {
		return fmt.Errorf("save shipping information of order %d: %w", orderID, err)
	}

	e := events.NewEvent(events.TypeShipmentRegistered, orderID, now)
	e.TransactionID = info.TransactionID
	e.Packages = items
	if err := r.publisher.Publish(ctx, e); err != nil {
		r.logger.Ctx(ctx).Error("Failed to publish shipment event",
			zap.Int("order_id", orderID),
			zap.String("event_type", e.Type),
			zap.Error(err),
		)
	}
	return nil
}

// Reset clears the status record of an order and publishes a
// shipment.reset event. A publish failure is logged only.
func (r *Recorder) Reset(ctx context.Context, orderID int) error {
	if err := r.status.Reset(ctx, orderID); err != nil {
		return fmt.Errorf("reset shipping information of order %d: %w", orderID, err)
	}

	e := events.NewEvent(events.TypeShipmentReset, orderID, r.now())
	if err := r.publisher.Publish(ctx, e); err != nil {
		r.logger.Ctx(ctx).Error("Failed to publish shipment event",
			zap.Int("order_id", orderID),
			zap.String("event_type", e.Type),
			zap.Error(err),
		)
	}
	return nil
}
