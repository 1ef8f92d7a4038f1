package memory

import (
	"context"
	"sync"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

// StatusStore keeps shipping information per order.
type StatusStore struct {
	mu    sync.RWMutex
	infos map[int]shipper.ShippingInformation
}

// NewStatusStore creates an empty status store.
func NewStatusStore() *StatusStore {
	return &StatusStore{infos: make(map[int]shipper.ShippingInformation)}
}

// Save replaces the order's record.
func (s *StatusStore) Save(ctx context.Context, info *shipper.ShippingInformation) error {
	cp := *info
	cp.AdditionalData = append([]shipper.PackageLabel(nil), info.AdditionalData...)
	s.mu.Lock()
	s.infos[info.OrderID] = cp
	s.mu.Unlock()
	return nil
}

// Get returns nil, nil when the order has no record.
func (s *StatusStore) Get(ctx context.Context, orderID int) (*shipper.ShippingInformation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info, ok := s.infos[orderID]
	if !ok {
		return nil, nil
	}
	return &info, nil
}

// Reset removes the order's record.
func (s *StatusStore) Reset(ctx context.Context, orderID int) error {
	s.mu.Lock()
	delete(s.infos, orderID)
	s.mu.Unlock()
	return nil
}

var _ shipper.StatusSink = (*StatusStore)(nil)
