// Package events publishes shipment lifecycle events.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tournevent/cargoconnect/pkg/shipper"
)

// Event types.
const (
	TypeShipmentRegistered = "shipment.registered"
	TypeShipmentReset      = "shipment.reset"
)

// Event is a shipment lifecycle notification.
type Event struct {
	ID            string                 `json:"id"`
	Type          string                 `json:"type"`
	OrderID       int                    `json:"orderId"`
	Provider      string                 `json:"provider"`
	TransactionID string                 `json:"transactionId,omitempty"`
	Packages      []shipper.PackageLabel `json:"packages,omitempty"`
	OccurredAt    time.Time              `json:"occurredAt"`
}

// NewEvent creates an event with a fresh id.
func NewEvent(eventType string, orderID int, at time.Time) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OrderID:    orderID,
		Provider:   shipper.ProviderName,
		OccurredAt: at,
	}
}

// Publisher publishes shipment events.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }
