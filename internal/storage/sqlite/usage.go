package sqlite

import (
	"context"
	"database/sql"
)

// usage returns the counter stored at key, or 0 if absent -- absence of a
// key is semantically equivalent to value 0.
func usage(ctx context.Context, q querier, key string) (uint64, error) {
	var v uint64
	err := q.QueryRowContext(ctx, `SELECT counter FROM usage WHERE period_key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return v, err
}

// incrementUsage adds delta to the counter at key, creating it with value
// delta if absent. ON CONFLICT adds delta to the stored counter, so repeated
// increments within one transaction accumulate.
func incrementUsage(ctx context.Context, tx *sql.Tx, key string, delta uint64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO usage (period_key, counter) VALUES (?, ?)
		ON CONFLICT(period_key) DO UPDATE SET counter = counter + excluded.counter
	`, key, delta)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
