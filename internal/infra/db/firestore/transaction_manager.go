package firestore

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/ports/repository"
)

var _ repository.TransactionManager = (*TxManager)(nil)

const defaultMaxAttempts = 5

// TxManager runs per-user work in optimistic Firestore transactions. Every transaction
// first reads the user's subscription document, so two transactions of the same user
// always share a read-write dependency and one of them is aborted and retried.
type TxManager struct {
	cli         *firestore.Client
	maxAttempts int
}

// NewTxManager uses maxAttempts for Firestore's own retry loop; values <= 0 use the default.
func NewTxManager(cli *firestore.Client, maxAttempts int) *TxManager {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &TxManager{cli: cli, maxAttempts: maxAttempts}
}

func (m *TxManager) WithUserTx(ctx context.Context, userID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if userID == "" {
		return domain.ErrInvalidArgument
	}
	var fnErr error
	err := m.cli.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		fnErr = nil
		if _, err := tx.Get(m.cli.Collection(colSubscriptions).Doc(userID)); err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if err := fn(ctx, tx); err != nil {
			fnErr = err
			return err
		}
		return nil
	}, firestore.MaxAttempts(m.maxAttempts))
	if err == nil {
		return nil
	}
	// fn's own errors pass through unchanged.
	if fnErr != nil && errors.Is(err, fnErr) {
		return fnErr
	}
	return fmt.Errorf("run transaction: %w", classify(err))
}

// classify maps gRPC status codes onto domain sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
	}
	switch status.Code(err) {
	case codes.NotFound:
		return domain.ErrNotFound
	case codes.Aborted:
		return fmt.Errorf("%w: %v", domain.ErrTxConflict, err)
	case codes.AlreadyExists:
		return fmt.Errorf("%w: %v", domain.ErrAlreadyExists, err)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.PermissionDenied, codes.OutOfRange:
		return fmt.Errorf("%w: %v", domain.ErrOperationFailed, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

// asTx returns the Firestore transaction carried by tx, nil for a non-transactional call.
func asTx(tx repository.Tx) (*firestore.Transaction, error) {
	switch v := tx.(type) {
	case nil:
		return nil, nil
	case *firestore.Transaction:
		return v, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}

// getDoc reads ref through tx when one is open.
func getDoc(ctx context.Context, ftx *firestore.Transaction, ref *firestore.DocumentRef) (*firestore.DocumentSnapshot, error) {
	var (
		snap *firestore.DocumentSnapshot
		err  error
	)
	if ftx != nil {
		snap, err = ftx.Get(ref)
	} else {
		snap, err = ref.Get(ctx)
	}
	if err != nil {
		return nil, classify(err)
	}
	return snap, nil
}

// setDoc writes data to ref, buffered in tx when one is open.
func setDoc(ctx context.Context, ftx *firestore.Transaction, ref *firestore.DocumentRef, data interface{}) error {
	var err error
	if ftx != nil {
		err = ftx.Set(ref, data)
	} else {
		_, err = ref.Set(ctx, data)
	}
	return classify(err)
}

// createDoc fails with ErrAlreadyExists when ref is present.
func createDoc(ctx context.Context, ftx *firestore.Transaction, ref *firestore.DocumentRef, data interface{}) error {
	var err error
	if ftx != nil {
		err = ftx.Create(ref, data)
	} else {
		_, err = ref.Create(ctx, data)
	}
	return classify(err)
}

func documents(ctx context.Context, ftx *firestore.Transaction, q firestore.Query) *firestore.DocumentIterator {
	if ftx != nil {
		return ftx.Documents(q)
	}
	return q.Documents(ctx)
}
