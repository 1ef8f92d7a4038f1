package shipment

import (
	"context"
	"fmt"
	"strings"

	"github.com/tournevent/cargoconnect/pkg/shipper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// DefaultLabelNamespace is the blob namespace labels are stored under.
const DefaultLabelNamespace = shipper.ProviderName

// LabelStore persists label documents under deterministic keys.
type LabelStore struct {
	blobs     shipper.BlobStore
	namespace string
}

// NewLabelStore creates a label store in namespace.
func NewLabelStore(blobs shipper.BlobStore, namespace string) *LabelStore {
	if namespace == "" {
		namespace = DefaultLabelNamespace
	}
	return &LabelStore{blobs: blobs, namespace: namespace}
}

// LabelKey is the storage key of a package's label.
func LabelKey(packageID int) string {
	return fmt.Sprintf("%d.pdf", packageID)
}

// Store uploads a package label and returns the stored object together with
// its retrieval URL.
func (s *LabelStore) Store(ctx context.Context, packageID int, pdf []byte) (*shipper.StoredObject, string, error) {
	key := LabelKey(packageID)
	obj, err := s.blobs.Upload(ctx, s.namespace, key, pdf)
	if err != nil {
		return nil, "", fmt.Errorf("upload %s/%s: %w", s.namespace, key, err)
	}
	url, err := s.blobs.URL(ctx, s.namespace, key)
	if err != nil {
		return nil, "", fmt.Errorf("url %s/%s: %w", s.namespace, key, err)
	}
	return obj, url, nil
}

// Load returns the label referenced by a stored label path. The path's
// namespace segment wins over the store's own, so labels written under an
// earlier namespace stay readable. ok is false when the path carries no key
// or the object does not exist.
func (s *LabelStore) Load(ctx context.Context, labelPath string) (body []byte, ok bool, err error) {
	namespace, key := splitLabelPath(labelPath)
	if key == "" {
		return nil, false, nil
	}
	if namespace == "" {
		namespace = s.namespace
	}
	exists, err := s.blobs.Exists(ctx, namespace, key)
	if err != nil {
		return nil, false, fmt.Errorf("exists %s/%s: %w", namespace, key, err)
	}
	if !exists {
		return nil, false, nil
	}
	body, err = s.blobs.Get(ctx, namespace, key)
	if err != nil {
		return nil, false, fmt.Errorf("get %s/%s: %w", namespace, key, err)
	}
	return body, true, nil
}

// splitLabelPath splits "<namespace>/<key>".
func splitLabelPath(path string) (namespace, key string) {
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(parts) < 2 {
		return "", ""
	}
	return strings.TrimSpace(parts[0]), parts[1]
}

// GetLabels returns the stored labels of the given orders, in order id then
// package order. Packages without a label path or whose object is missing
// are skipped.
func (s *Service) GetLabels(ctx context.Context, orderIDs []int) ([][]byte, error) {
	if len(orderIDs) == 0 {
		return nil, shipper.ErrNoOrderIDs
	}

	ctx, span := s.tracer.Start(ctx, "shipment.GetLabels", trace.WithAttributes(
		attribute.Int("batch.size", len(orderIDs)),
	))
	defer span.End()

	var labels [][]byte
	for _, orderID := range orderIDs {
		packages, err := s.orders.ListPackages(ctx, orderID)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("list packages of order %d: %w", orderID, err)
		}
		for _, pkg := range packages {
			if pkg.LabelPath == "" {
				continue
			}
			body, ok, err := s.labels.Load(ctx, pkg.LabelPath)
			if err != nil {
				span.RecordError(err)
				return nil, shipper.NewStorageError(fmt.Sprintf("load label of package %d", pkg.ID)).WithCause(err)
			}
			if !ok {
				s.logger.Ctx(ctx).Debug("Stored label missing",
					zap.Int("order_id", orderID),
					zap.Int("package_id", pkg.ID),
					zap.String("label_path", pkg.LabelPath),
				)
				continue
			}
			labels = append(labels, body)
		}
	}

	span.SetAttributes(attribute.Int("labels.count", len(labels)))
	return labels, nil
}

// GetOrderLabel returns the first stored label of an order.
func (s *Service) GetOrderLabel(ctx context.Context, orderID int) ([]byte, error) {
	labels, err := s.GetLabels(ctx, []int{orderID})
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("order %d: %w", orderID, shipper.ErrLabelNotAvailable)
	}
	return labels[0], nil
}
