package clickhouse

import (
	"context"
	"fmt"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/storage"
)

// FillPointStore implements storage.FillPointStore using ClickHouse.
type FillPointStore struct {
	conn *Conn
}

// NewFillPointStore creates a new FillPointStore.
func NewFillPointStore(conn *Conn) *FillPointStore {
	return &FillPointStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FillPointStore = (*FillPointStore)(nil)

// InsertBulk adds multiple points. Fails entire batch on a duplicate
// (flip_id, side, timestamp_ms, quantity) key.
func (s *FillPointStore) InsertBulk(ctx context.Context, points []*domain.FillPoint) error {
	if len(points) == 0 {
		return nil
	}

	// Check for intra-batch duplicates
	type key struct {
		flipID      string
		side        domain.OfferSide
		timestampMs int64
		quantity    int
	}
	seen := make(map[key]struct{})
	for _, p := range points {
		k := key{p.FlipID, p.Side, p.TimestampMs, p.Quantity}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	// Check for duplicates against existing DB rows
	for _, p := range points {
		exists, err := s.exists(ctx, p)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO fill_points (
			item_id, side, quantity, price_per_unit, slot_index, flip_id, timestamp_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, p := range points {
		err = batch.Append(
			uint32(p.ItemID), string(p.Side), uint32(p.Quantity),
			p.PricePerUnit, uint8(p.SlotIndex), p.FlipID, uint64(p.TimestampMs),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// GetByItem retrieves points for an item within [start, end] (inclusive),
// ordered by timestamp ASC.
func (s *FillPointStore) GetByItem(ctx context.Context, itemID int, start, end int64) ([]*domain.FillPoint, error) {
	query := `
		SELECT item_id, side, quantity, price_per_unit, slot_index, flip_id, timestamp_ms
		FROM fill_points
		WHERE item_id = ? AND timestamp_ms >= ? AND timestamp_ms <= ?
		ORDER BY timestamp_ms ASC
	`

	rows, err := s.conn.Query(ctx, query, uint32(itemID), uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by item: %w", err)
	}
	defer rows.Close()

	return scanFillPoints(rows)
}

// exists checks if a point with the given key exists.
func (s *FillPointStore) exists(ctx context.Context, p *domain.FillPoint) (bool, error) {
	query := `
		SELECT count(*) FROM fill_points
		WHERE flip_id = ? AND side = ? AND timestamp_ms = ? AND quantity = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query,
		p.FlipID, string(p.Side), uint64(p.TimestampMs), uint32(p.Quantity),
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Rows interface for scanning
type chRows interface {
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

// scanFillPoints scans multiple rows.
func scanFillPoints(rows chRows) ([]*domain.FillPoint, error) {
	var points []*domain.FillPoint

	for rows.Next() {
		var p domain.FillPoint
		var itemID, quantity uint32
		var slotIndex uint8
		var side string
		var timestampMs uint64

		err := rows.Scan(
			&itemID, &side, &quantity,
			&p.PricePerUnit, &slotIndex, &p.FlipID, &timestampMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan fill point row: %w", err)
		}

		p.ItemID = int(itemID)
		p.Side = domain.OfferSide(side)
		p.Quantity = int(quantity)
		p.SlotIndex = int(slotIndex)
		p.TimestampMs = int64(timestampMs)
		points = append(points, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill point rows: %w", err)
	}

	return points, nil
}
