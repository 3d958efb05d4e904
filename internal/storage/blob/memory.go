package blob

import (
	"context"
	"fmt"
	"sync"

	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
)

const defaultMemoryBaseURL = "memory://staged-images"

// MemoryStore keeps assets in a map.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string][]byte
	baseURL string
}

var _ ports.AssetStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. An empty baseURL uses memory://.
func NewMemoryStore(baseURL string) *MemoryStore {
	if baseURL == "" {
		baseURL = defaultMemoryBaseURL
	}
	return &MemoryStore{
		objects: make(map[string][]byte),
		baseURL: baseURL,
	}
}

func (s *MemoryStore) Store(ctx context.Context, ownerID string, data []byte) (*domain.StoredAsset, error) {
	return s.Put(ctx, NewKey(ownerID), data)
}

// Put writes data under key, refusing to overwrite.
func (s *MemoryStore) Put(_ context.Context, key string, data []byte) (*domain.StoredAsset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[key]; exists {
		return nil, domain.ErrStorageWrite(fmt.Errorf("object %s already exists", key))
	}

	s.objects[key] = append([]byte(nil), data...)
	return &domain.StoredAsset{Key: key, URL: publicURL(s.baseURL, key)}, nil
}

// Get returns a copy of the object at key.
func (s *MemoryStore) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[key]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), data...), true
}

// Len reports the number of stored objects.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
