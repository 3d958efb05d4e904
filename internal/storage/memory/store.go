// Package memory is an in-process result store for development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/roomstage/internal/core/domain"
	"github.com/tjfontaine/roomstage/internal/core/ports"
)

// Store is an in-memory implementation of ports.ResultStore.
type Store struct {
	mu      sync.RWMutex
	records map[string]*domain.StagedImageRecord
	now     func() time.Time
}

var _ ports.ResultStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		records: make(map[string]*domain.StagedImageRecord),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Record(ctx context.Context, in domain.RecordInput) (string, time.Time, error) {
	if err := ctx.Err(); err != nil {
		return "", time.Time{}, domain.ErrPersistence(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	now := s.now()
	b := in.Breakdown

	s.records[id] = &domain.StagedImageRecord{
		ID:          id,
		OwnerID:     in.OwnerID,
		OriginalURL: in.OriginalURL,
		StagedURL:   in.StagedURL,
		Prompt:      in.Prompt,
		RoomType:    in.RoomType,
		Style:       in.Style,
		Furniture:   clone(b.Furniture),
		Decor:       clone(b.Decor),
		Lighting:    clone(b.Lighting),
		Colors:      clone(b.Colors),
		Materials:   clone(b.Materials),
		Accessories: clone(b.Accessories),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	return id, now, nil
}

func (s *Store) GetResult(ctx context.Context, ownerID, id string) (*domain.StagedImageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok || rec.OwnerID != ownerID {
		return nil, domain.ErrNotFound("Staged image not found")
	}

	cp := *rec
	return &cp, nil
}

// Len reports how many rows have been recorded.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Close() error {
	return nil
}

func clone(in []string) []string {
	return append([]string{}, in...)
}
