package memory

import (
	"context"
	"sort"
	"sync"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/storage"
)

// FlipHistoryStore is an in-memory implementation of storage.FlipHistoryStore.
type FlipHistoryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Flip // keyed by flip_id
}

// NewFlipHistoryStore creates a new in-memory flip history store.
func NewFlipHistoryStore() *FlipHistoryStore {
	return &FlipHistoryStore{
		data: make(map[string]*domain.Flip),
	}
}

// Insert archives a terminal flip. Returns ErrDuplicateKey if flip_id exists.
func (s *FlipHistoryStore) Insert(_ context.Context, f *domain.Flip) error {
	if f == nil || f.FlipID == "" {
		return storage.ErrInvalidInput
	}
	if !f.Terminal() {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.FlipID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[f.FlipID] = f.Clone()
	return nil
}

// GetByID retrieves an archived flip. Returns ErrNotFound if not exists.
func (s *FlipHistoryStore) GetByID(_ context.Context, flipID string) (*domain.Flip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[flipID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return f.Clone(), nil
}

// GetByItem retrieves archived flips for an item, ordered by created_at ASC.
func (s *FlipHistoryStore) GetByItem(_ context.Context, itemID int) ([]*domain.Flip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Flip
	for _, f := range s.data {
		if f.ItemID == itemID {
			result = append(result, f.Clone())
		}
	}

	sortFlips(result)
	return result, nil
}

// GetByTimeRange retrieves flips created within [start, end] (inclusive).
func (s *FlipHistoryStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.Flip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Flip
	for _, f := range s.data {
		if f.CreatedAt >= start && f.CreatedAt <= end {
			result = append(result, f.Clone())
		}
	}

	sortFlips(result)
	return result, nil
}

// sortFlips orders by created_at ASC with flip_id as tie-break.
func sortFlips(flips []*domain.Flip) {
	sort.Slice(flips, func(i, j int) bool {
		if flips[i].CreatedAt != flips[j].CreatedAt {
			return flips[i].CreatedAt < flips[j].CreatedAt
		}
		return flips[i].FlipID < flips[j].FlipID
	})
}

// Verify interface compliance at compile time.
var _ storage.FlipHistoryStore = (*FlipHistoryStore)(nil)
