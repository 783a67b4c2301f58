package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-cart/internal/storage/snapshot"
)

const (
	getSnapshotSQL = `SELECT payload FROM cart_snapshots WHERE key = $1`

	upsertSnapshotSQL = `INSERT INTO cart_snapshots (key, payload, updated_at)
	VALUES ($1, $2, now())
	ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = now()`
)

var _ snapshot.KV = (*SnapshotKV)(nil)

// SnapshotKV implements snapshot.KV on the cart_snapshots table.
type SnapshotKV struct {
	pool *pgxpool.Pool
}

// NewSnapshotKV returns a SnapshotKV that uses the given pool.
func NewSnapshotKV(pool *pgxpool.Pool) *SnapshotKV {
	return &SnapshotKV{pool: pool}
}

// Get implements snapshot.KV.
func (kv *SnapshotKV) Get(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	if err := kv.pool.QueryRow(ctx, getSnapshotSQL, key).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, snapshot.ErrNotFound
		}
		return nil, fmt.Errorf("getting snapshot %q: %w", key, err)
	}
	return payload, nil
}

// Set implements snapshot.KV. The payload must be valid JSON; the JSONB
// column rejects anything else.
func (kv *SnapshotKV) Set(ctx context.Context, key string, value []byte) error {
	if _, err := kv.pool.Exec(ctx, upsertSnapshotSQL, key, value); err != nil {
		return fmt.Errorf("saving snapshot %q: %w", key, err)
	}
	return nil
}
