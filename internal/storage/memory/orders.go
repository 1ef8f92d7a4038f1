// Package memory provides in-process implementations of the host
// collaborators, for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

// OrderStore holds orders, their packages and package types.
type OrderStore struct {
	mu           sync.RWMutex
	orders       map[int]shipper.Order
	packages     map[int]shipper.OrderPackage
	packageTypes map[int]shipper.PackageType
}

// NewOrderStore creates an empty store.
func NewOrderStore() *OrderStore {
	return &OrderStore{
		orders:       make(map[int]shipper.Order),
		packages:     make(map[int]shipper.OrderPackage),
		packageTypes: make(map[int]shipper.PackageType),
	}
}

// AddOrder stores an order together with its packages. Package OrderIDs
// are set to the order's id.
func (s *OrderStore) AddOrder(order shipper.Order, packages ...shipper.OrderPackage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
	for _, p := range packages {
		p.OrderID = order.ID
		s.packages[p.ID] = p
	}
}

// AddPackageType stores a package type.
func (s *OrderStore) AddPackageType(t shipper.PackageType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packageTypes[t.ID] = t
}

// FindOrder returns a copy of the order.
func (s *OrderStore) FindOrder(ctx context.Context, orderID int) (*shipper.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", orderID, shipper.ErrOrderNotFound)
	}
	o.Items = append([]shipper.OrderItem(nil), o.Items...)
	return &o, nil
}

// ListPackages returns the order's packages ordered by package id.
func (s *OrderStore) ListPackages(ctx context.Context, orderID int) ([]shipper.OrderPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []shipper.OrderPackage
	for _, p := range s.packages {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpdatePackage sets a package's tracking number and label path.
func (s *OrderStore) UpdatePackage(ctx context.Context, packageID int, packageNumber, labelPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.packages[packageID]
	if !ok {
		return fmt.Errorf("package %d not found", packageID)
	}
	p.PackageNumber = packageNumber
	p.LabelPath = labelPath
	s.packages[packageID] = p
	return nil
}

// Package returns a stored package.
func (s *OrderStore) Package(packageID int) (shipper.OrderPackage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.packages[packageID]
	return p, ok
}

// FindPackageType returns nil, nil for unknown ids.
func (s *OrderStore) FindPackageType(ctx context.Context, packageTypeID int) (*shipper.PackageType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.packageTypes[packageTypeID]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

var (
	_ shipper.OrderSource         = (*OrderStore)(nil)
	_ shipper.PackageTypeResolver = (*OrderStore)(nil)
)
