package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/burgonet-eu/gateway/internal/storage"
)

// readTxn wraps a SQLite read-only transaction opened against the reader
// pool. SQLite's MVCC gives it a consistent snapshot for its lifetime: a
// reader opened before a commit on the writer connection does not observe
// that commit, matching the store contract.
type readTxn struct {
	tx *sql.Tx
}

func (s *Store) BeginRead(ctx context.Context) (storage.ReadTxn, error) {
	tx, err := s.read.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin read: %w", err)
	}
	return &readTxn{tx: tx}, nil
}

func (r *readTxn) Token(ctx context.Context, tok string) (string, bool, error) {
	return token(ctx, r.tx, tok)
}

func (r *readTxn) Groups(ctx context.Context, user string) ([]string, error) {
	return groups(ctx, r.tx, user)
}

func (r *readTxn) Usage(ctx context.Context, key string) (uint64, error) {
	return usage(ctx, r.tx, key)
}

func (r *readTxn) Release() {
	_ = r.tx.Rollback()
}

// writeTx wraps the single serialized writer connection's transaction.
type writeTx struct {
	tx *sql.Tx
}

func (s *Store) BeginWrite(ctx context.Context) (storage.WriteTx, error) {
	tx, err := s.write.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin write: %w", err)
	}
	return &writeTx{tx: tx}, nil
}

func (w *writeTx) IncrementUsage(ctx context.Context, key string, delta uint64) error {
	return incrementUsage(ctx, w.tx, key, delta)
}

func (w *writeTx) SetToken(ctx context.Context, tok, user string) error {
	return setToken(ctx, w.tx, tok, user)
}

func (w *writeTx) SetGroups(ctx context.Context, user string, groups []string) error {
	return setGroups(ctx, w.tx, user, groups)
}

func (w *writeTx) DeleteToken(ctx context.Context, tok string) error {
	return deleteToken(ctx, w.tx, tok)
}

func (w *writeTx) Commit(ctx context.Context) error {
	return w.tx.Commit()
}

func (w *writeTx) Discard() {
	_ = w.tx.Rollback()
}
