package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestDB creates a PostgreSQL container for testing and applies the
// flip_history schema. Returns a cleanup function that must be called after
// tests complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err, "failed to create pool")

	applySchema(t, ctx, pool)

	cleanup := func() {
		pool.Close()
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}

	return pool, cleanup
}

// applySchema mirrors migrations/postgres/001_flip_history.sql. Kept inline
// so the store package does not import the migrations package it feeds.
func applySchema(t *testing.T, ctx context.Context, pool *Pool) {
	t.Helper()

	schema := `
		CREATE TABLE IF NOT EXISTS flip_history (
			flip_id                TEXT PRIMARY KEY,
			item_id                INTEGER NOT NULL,
			status                 TEXT NOT NULL,
			origin                 TEXT NOT NULL,
			recommended_buy_price  BIGINT,
			recommended_sell_price BIGINT,
			quantity_limit         INTEGER NOT NULL DEFAULT 0,
			quantity_bought        INTEGER NOT NULL DEFAULT 0,
			quantity_sold          INTEGER NOT NULL DEFAULT 0,
			gross_spent            BIGINT NOT NULL DEFAULT 0,
			gross_received         BIGINT NOT NULL DEFAULT 0,
			tax_paid               BIGINT NOT NULL DEFAULT 0,
			realized_profit        BIGINT NOT NULL DEFAULT 0,
			created_at             BIGINT NOT NULL,
			bought_at              BIGINT,
			sold_at                BIGINT,
			sequence               BIGINT NOT NULL DEFAULT 0,
			CONSTRAINT flip_history_status_check CHECK (status IN ('COMPLETED', 'DISMISSED'))
		)
	`
	_, err := pool.Exec(ctx, schema)
	require.NoError(t, err, "failed to apply flip_history schema")
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
