// Package storage defines the persistence interface for the gateway's three
// logical tables: tokens, groups, and usage counters.
package storage

import "context"

// ReadTxn is a consistent point-in-time view opened at admission. Multiple
// concurrent readers are permitted; a reader opened before a commit does not
// observe that commit.
type ReadTxn interface {
	// Token resolves a bearer token to a user ID. ok is false when the
	// mapping is absent or empty.
	Token(ctx context.Context, token string) (user string, ok bool, err error)
	// Groups returns the comma-split, trimmed group list for a user. An
	// absent row yields an empty slice, not an error.
	Groups(ctx context.Context, user string) ([]string, error)
	// Usage returns the counter stored at key, or 0 if absent.
	Usage(ctx context.Context, key string) (uint64, error)
	// Release discards the snapshot. Safe to call multiple times.
	Release()
}

// WriteTx is the single, process-serialized writable transaction. Opened
// lazily at logging time, never during admission -- see the design note on
// lazy write transactions.
type WriteTx interface {
	// IncrementUsage adds delta to the counter at key, creating it with
	// value delta if absent. Repeated increments within the transaction
	// accumulate.
	IncrementUsage(ctx context.Context, key string, delta uint64) error
	// SetToken and SetGroups support the admin API and dev-mode seeding.
	SetToken(ctx context.Context, token, user string) error
	SetGroups(ctx context.Context, user string, groups []string) error
	DeleteToken(ctx context.Context, token string) error
	// Commit finalizes all writes made through this transaction.
	Commit(ctx context.Context) error
	// Discard abandons the transaction without applying any writes.
	Discard()
}

// Store is the embedded transactional key/value database described in
// SPEC_FULL.md §4.1. I/O failures are returned as plain errors; the gateway
// pipeline wraps them in gateway.ErrStoreIO, which the HTTP boundary
// translates into an HTTP 500.
type Store interface {
	BeginRead(ctx context.Context) (ReadTxn, error)
	BeginWrite(ctx context.Context) (WriteTx, error)

	// ListTokens and ListGroups back the admin API's read endpoints; they
	// bypass the read-snapshot/write-tx protocol since they are not part of
	// the per-request pipeline.
	ListTokens(ctx context.Context) (map[string]string, error)
	ListGroups(ctx context.Context) (map[string][]string, error)

	Close() error
}
