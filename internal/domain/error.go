package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid transaction handle for this store")

	// Entitlement errors
	ErrNoActivePackage = errors.New("no active package")
	ErrPackageExpired  = errors.New("package expired")
	ErrPackageInactive = errors.New("package inactive")
	ErrInvalidPackage  = errors.New("invalid package, contact support")
	ErrUnknownPackage  = errors.New("unknown package")

	// Quota exhaustion
	ErrWeeklyLimitReached = errors.New("weekly limit reached")
	ErrTotalLimitReached  = errors.New("total limit reached")

	// Transient store failures; callers may retry.
	ErrTxConflict       = errors.New("transaction conflict")
	ErrStoreUnavailable = errors.New("store unavailable")

	// Identity / payment collaborators
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidSignature = errors.New("invalid payment signature")
	ErrLockNotAcquired  = errors.New("lock not acquired")
)

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTxConflict) || errors.Is(err, ErrStoreUnavailable)
}
