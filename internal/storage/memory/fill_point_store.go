package memory

import (
	"context"
	"sort"
	"sync"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/storage"
)

// fillKey identifies one fill increment.
type fillKey struct {
	flipID      string
	side        domain.OfferSide
	timestampMs int64
	quantity    int
}

// FillPointStore is an in-memory implementation of storage.FillPointStore.
type FillPointStore struct {
	mu     sync.RWMutex
	points []*domain.FillPoint
	seen   map[fillKey]struct{}
}

// NewFillPointStore creates a new in-memory fill point store.
func NewFillPointStore() *FillPointStore {
	return &FillPointStore{
		seen: make(map[fillKey]struct{}),
	}
}

// InsertBulk adds multiple points. Fails entire batch on any duplicate.
func (s *FillPointStore) InsertBulk(_ context.Context, points []*domain.FillPoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.FlipID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Check the whole batch before mutating
	batch := make(map[fillKey]struct{}, len(points))
	for _, p := range points {
		k := fillKey{p.FlipID, p.Side, p.TimestampMs, p.Quantity}
		if _, exists := s.seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batch[k]; exists {
			return storage.ErrDuplicateKey
		}
		batch[k] = struct{}{}
	}

	for _, p := range points {
		k := fillKey{p.FlipID, p.Side, p.TimestampMs, p.Quantity}
		s.seen[k] = struct{}{}
		pointCopy := *p
		s.points = append(s.points, &pointCopy)
	}
	return nil
}

// GetByItem retrieves points for an item within [start, end] (inclusive).
func (s *FillPointStore) GetByItem(_ context.Context, itemID int, start, end int64) ([]*domain.FillPoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FillPoint
	for _, p := range s.points {
		if p.ItemID == itemID && p.TimestampMs >= start && p.TimestampMs <= end {
			pointCopy := *p
			result = append(result, &pointCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.FillPointStore = (*FillPointStore)(nil)
