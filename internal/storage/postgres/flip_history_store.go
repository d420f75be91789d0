package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"exchange-flip-assistant/internal/domain"
	"exchange-flip-assistant/internal/storage"
)

// FlipHistoryStore implements storage.FlipHistoryStore using PostgreSQL.
type FlipHistoryStore struct {
	pool *Pool
}

// NewFlipHistoryStore creates a new FlipHistoryStore.
func NewFlipHistoryStore(pool *Pool) *FlipHistoryStore {
	return &FlipHistoryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.FlipHistoryStore = (*FlipHistoryStore)(nil)

const flipColumns = `
	flip_id, item_id, status, origin,
	recommended_buy_price, recommended_sell_price, quantity_limit,
	quantity_bought, quantity_sold,
	gross_spent, gross_received, tax_paid, realized_profit,
	created_at, bought_at, sold_at, sequence
`

// Insert archives a terminal flip. Returns ErrDuplicateKey if flip_id
// exists and ErrInvalidInput for a non-terminal flip.
func (s *FlipHistoryStore) Insert(ctx context.Context, f *domain.Flip) error {
	if !f.Terminal() {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO flip_history (` + flipColumns + `
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17
		)
	`

	_, err := s.pool.Exec(ctx, query,
		f.FlipID, f.ItemID, string(f.Status), string(f.Origin),
		f.RecommendedBuyPrice, f.RecommendedSellPrice, f.QuantityLimit,
		f.QuantityBought, f.QuantitySold,
		f.GrossSpent, f.GrossReceived, f.TaxPaid, f.RealizedProfit,
		f.CreatedAt, f.BoughtAt, f.SoldAt, f.Sequence,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert flip: %w", err)
	}
	return nil
}

// GetByID retrieves an archived flip. Returns ErrNotFound if not exists.
func (s *FlipHistoryStore) GetByID(ctx context.Context, flipID string) (*domain.Flip, error) {
	query := `
		SELECT ` + flipColumns + `
		FROM flip_history
		WHERE flip_id = $1
	`

	row := s.pool.QueryRow(ctx, query, flipID)
	f, err := scanFlip(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get flip by id: %w", err)
	}
	return f, nil
}

// GetByItem retrieves archived flips for an item, oldest first.
func (s *FlipHistoryStore) GetByItem(ctx context.Context, itemID int) ([]*domain.Flip, error) {
	query := `
		SELECT ` + flipColumns + `
		FROM flip_history
		WHERE item_id = $1
		ORDER BY created_at ASC, flip_id ASC
	`

	rows, err := s.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, fmt.Errorf("get flips by item: %w", err)
	}
	defer rows.Close()

	return scanFlips(rows)
}

// GetByTimeRange retrieves flips created within [start, end] inclusive,
// oldest first.
func (s *FlipHistoryStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.Flip, error) {
	query := `
		SELECT ` + flipColumns + `
		FROM flip_history
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at ASC, flip_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get flips by time range: %w", err)
	}
	defer rows.Close()

	return scanFlips(rows)
}

// scanFlip scans a single row into a Flip.
func scanFlip(row pgx.Row) (*domain.Flip, error) {
	var f domain.Flip
	var status, origin string

	err := row.Scan(
		&f.FlipID, &f.ItemID, &status, &origin,
		&f.RecommendedBuyPrice, &f.RecommendedSellPrice, &f.QuantityLimit,
		&f.QuantityBought, &f.QuantitySold,
		&f.GrossSpent, &f.GrossReceived, &f.TaxPaid, &f.RealizedProfit,
		&f.CreatedAt, &f.BoughtAt, &f.SoldAt, &f.Sequence,
	)
	if err != nil {
		return nil, err
	}

	f.Status = domain.FlipStatus(status)
	f.Origin = domain.FlipOrigin(origin)
	return &f, nil
}

// scanFlips scans multiple rows into a slice of Flip.
func scanFlips(rows pgx.Rows) ([]*domain.Flip, error) {
	var flips []*domain.Flip

	for rows.Next() {
		var f domain.Flip
		var status, origin string

		err := rows.Scan(
			&f.FlipID, &f.ItemID, &status, &origin,
			&f.RecommendedBuyPrice, &f.RecommendedSellPrice, &f.QuantityLimit,
			&f.QuantityBought, &f.QuantitySold,
			&f.GrossSpent, &f.GrossReceived, &f.TaxPaid, &f.RealizedProfit,
			&f.CreatedAt, &f.BoughtAt, &f.SoldAt, &f.Sequence,
		)
		if err != nil {
			return nil, fmt.Errorf("scan flip row: %w", err)
		}

		f.Status = domain.FlipStatus(status)
		f.Origin = domain.FlipOrigin(origin)
		flips = append(flips, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate flip rows: %w", err)
	}

	return flips, nil
}
