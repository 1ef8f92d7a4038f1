// Package shipper provides the carrier-neutral model and the capability
// interfaces the shipment registration workflow depends on.
package shipper

import (
	"context"
)

// Carrier defines the operations of an external shipping carrier.
type Carrier interface {
	// Name returns the carrier identifier.
	Name() string

	// SubmitOrder registers a shipment. A carrier-reported rejection is
	// returned as a KindBusiness error, everything else as transport or
	// malformed-response errors.
	SubmitOrder(ctx context.Context, req *ShipmentRequest) (*Shipment, error)

	// RetrieveLabelPage extracts one page of a multi-package label document.
	RetrieveLabelPage(ctx context.Context, encodedLabel string, page int) ([]byte, error)
}

// OrderSource reads orders and their packages from the host platform and
// writes back per-package tracking data.
type OrderSource interface {
	// FindOrder returns ErrOrderNotFound for unknown ids.
	FindOrder(ctx context.Context, orderID int) (*Order, error)
	ListPackages(ctx context.Context, orderID int) ([]OrderPackage, error)
	UpdatePackage(ctx context.Context, packageID int, packageNumber, labelPath string) error
}

// PackageTypeResolver looks up package type dimensions.
type PackageTypeResolver interface {
	// FindPackageType returns nil, nil for unknown ids.
	FindPackageType(ctx context.Context, packageTypeID int) (*PackageType, error)
}

// BlobStore is a namespaced key-value store for binary label content.
type BlobStore interface {
	Upload(ctx context.Context, namespace, key string, body []byte) (*StoredObject, error)
	Exists(ctx context.Context, namespace, key string) (bool, error)
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	URL(ctx context.Context, namespace, key string) (string, error)
}

// StatusSink persists shipping information per order.
type StatusSink interface {
	Save(ctx context.Context, info *ShippingInformation) error
	// Get returns nil, nil when the order has no record.
	Get(ctx context.Context, orderID int) (*ShippingInformation, error)
	Reset(ctx context.Context, orderID int) error
}
