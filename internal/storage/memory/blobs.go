package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

// BlobStore keeps blobs in a map keyed by "<namespace>/<key>".
type BlobStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewBlobStore creates an empty blob store.
func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string][]byte)}
}

// Upload stores a copy of body, replacing any previous content.
func (s *BlobStore) Upload(ctx context.Context, namespace, key string, body []byte) (*shipper.StoredObject, error) {
	path := namespace + "/" + key
	s.mu.Lock()
	s.blobs[path] = append([]byte(nil), body...)
	s.mu.Unlock()
	return &shipper.StoredObject{Key: key, Path: path}, nil
}

// Exists reports whether the object exists.
func (s *BlobStore) Exists(ctx context.Context, namespace, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.blobs[namespace+"/"+key]
	return ok, nil
}

// Get returns a copy of the object.
func (s *BlobStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.blobs[namespace+"/"+key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", namespace, key, shipper.ErrLabelNotAvailable)
	}
	return append([]byte(nil), body...), nil
}

// URL returns a memory:// reference to the object.
func (s *BlobStore) URL(ctx context.Context, namespace, key string) (string, error) {
	return fmt.Sprintf("memory://%s/%s", namespace, key), nil
}

// Len returns the number of stored objects.
func (s *BlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

var _ shipper.BlobStore = (*BlobStore)(nil)
