package repository

import "context"

// Tx is a store-specific transaction handle (pgx.Tx, *firestore.Transaction, ...).
// Repositories MUST accept a nil Tx and fall back to a non-transactional path.
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn as one atomic unit that is serialised against every other
// WithUserTx call for the same userID. Stores may implement this pessimistically
// (row/advisory locks) or optimistically (read-set validation with retries); either way
// fn may be invoked more than once and must be free of side effects outside tx.
//
// Implementations translate retryable contention into domain.ErrTxConflict and
// connectivity failures into domain.ErrStoreUnavailable. Errors returned by fn are
// passed through unchanged and cause a rollback.
type TransactionManager interface {
	WithUserTx(ctx context.Context, userID string, fn func(ctx context.Context, tx Tx) error) error
}
