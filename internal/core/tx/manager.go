// Package tx defines the transaction boundary used by domain services.
// The pgx-backed implementation lives in infrastructure/storage/postgres.
package tx

import "context"

// Manager runs a function inside a database transaction.
type Manager interface {
	// RunInTransaction executes fn within a transaction, committing on nil
	// and rolling back on error. Nested calls reuse the transaction already
	// carried by the context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
