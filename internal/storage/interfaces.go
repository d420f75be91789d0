package storage

import (
	"context"

	"exchange-flip-assistant/internal/domain"
)

// FlipHistoryStore is the retention collaborator for terminal flips. The
// ledger hands completed and dismissed flips over; the store never sees a
// live flip.
type FlipHistoryStore interface {
	// Insert archives a terminal flip. Returns ErrDuplicateKey if flip_id exists.
	Insert(ctx context.Context, f *domain.Flip) error

	// GetByID retrieves an archived flip. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, flipID string) (*domain.Flip, error)

	// GetByItem retrieves archived flips for an item, ordered by created_at ASC.
	GetByItem(ctx context.Context, itemID int) ([]*domain.Flip, error)

	// GetByTimeRange retrieves flips created within [start, end] (inclusive),
	// ordered by created_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Flip, error)
}

// FillPointStore records observed fill increments as a timeseries.
type FillPointStore interface {
	// InsertBulk adds multiple points. Points are keyed by
	// (flip_id, timestamp_ms, side, quantity_filled-implied position);
	// exact duplicates fail the batch with ErrDuplicateKey.
	InsertBulk(ctx context.Context, points []*domain.FillPoint) error

	// GetByItem retrieves points for an item within [start, end] (inclusive),
	// ordered by timestamp ASC.
	GetByItem(ctx context.Context, itemID int, start, end int64) ([]*domain.FillPoint, error)
}
