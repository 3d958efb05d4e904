package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
)

// FileStore writes assets beneath a root directory.
type FileStore struct {
	root    string
	baseURL string
}

var _ ports.AssetStore = (*FileStore)(nil)

// NewFileStore creates root if needed.
func NewFileStore(root, baseURL string) (*FileStore, error) {
	if root == "" {
		return nil, errors.New("file asset store requires a root directory")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create asset root: %w", err)
	}
	if baseURL == "" {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve asset root: %w", err)
		}
		baseURL = "file://" + filepath.ToSlash(abs)
	}
	return &FileStore{root: root, baseURL: baseURL}, nil
}

func (s *FileStore) Store(ctx context.Context, ownerID string, data []byte) (*domain.StoredAsset, error) {
	return s.Put(ctx, NewKey(ownerID), data)
}

// Put writes data to root/key. An existing file is never replaced.
func (s *FileStore) Put(_ context.Context, key string, data []byte) (*domain.StoredAsset, error) {
	path, ok := s.path(key)
	if !ok {
		return nil, domain.ErrStorageWrite(fmt.Errorf("key %q escapes the asset root", key))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, domain.ErrStorageWrite(err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, domain.ErrStorageWrite(err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		_ = os.Remove(path)
		return nil, domain.ErrStorageWrite(err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return nil, domain.ErrStorageWrite(err)
	}

	return &domain.StoredAsset{Key: key, URL: publicURL(s.baseURL, key)}, nil
}

// Get reads the object at key. Keys outside root are reported as missing.
func (s *FileStore) Get(key string) ([]byte, bool) {
	path, ok := s.path(key)
	if !ok {
		return nil, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	return data, true
}

func (s *FileStore) path(key string) (string, bool) {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	return path, strings.HasPrefix(path, filepath.Clean(s.root)+string(os.PathSeparator))
}
