// Package filesystem stores label blobs in a local directory tree.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/tournevent/cargoconnect/pkg/shipper"
)

// BlobStore writes each object to <root>/<namespace>/<key>.
type BlobStore struct {
	root string
}

// NewBlobStore creates the root directory if needed.
func NewBlobStore(root string) (*BlobStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve label dir: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create label dir: %w", err)
	}
	return &BlobStore{root: abs}, nil
}

// Upload writes body atomically, replacing any previous content.
func (s *BlobStore) Upload(ctx context.Context, namespace, key string, body []byte) (*shipper.StoredObject, error) {
	path, err := s.path(namespace, key)
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create namespace dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+key+".*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("rename %s: %w", key, err)
	}

	return &shipper.StoredObject{Key: key, Path: namespace + "/" + key}, nil
}

// Exists reports whether the object exists.
func (s *BlobStore) Exists(ctx context.Context, namespace, key string) (bool, error) {
	path, err := s.path(namespace, key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get reads the object.
func (s *BlobStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	path, err := s.path(namespace, key)
	if err != nil {
		return nil, err
	}
	body, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s/%s: %w", namespace, key, shipper.ErrLabelNotAvailable)
	}
	return body, err
}

// URL returns a file:// URL of the object.
func (s *BlobStore) URL(ctx context.Context, namespace, key string) (string, error) {
	path, err := s.path(namespace, key)
	if err != nil {
		return "", err
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String(), nil
}

// path rejects names that would escape the root.
func (s *BlobStore) path(namespace, key string) (string, error) {
	for _, part := range []string{namespace, key} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", fmt.Errorf("invalid object name %q", part)
		}
	}
	return filepath.Join(s.root, namespace, key), nil
}

var _ shipper.BlobStore = (*BlobStore)(nil)
