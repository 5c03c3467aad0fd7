// Package memory is an in-process store for dev mode, the demo and tests. Per-user
// transactions hold a user mutex and stage writes until commit, so a failing callback
// leaves nothing behind.
package memory

import (
	"context"
	"sync"
	"sync/atomic"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
)

type Store struct {
	mu        sync.RWMutex
	subs      map[string]*model.Subscription
	usage     map[string]*model.ContactUsage
	purchases []*model.Purchase
	packages  map[string]*model.Package

	locksMu   sync.Mutex
	userLocks map[string]*sync.Mutex

	conflicts atomic.Int32
}

func NewStore() *Store {
	return &Store{
		subs:      make(map[string]*model.Subscription),
		usage:     make(map[string]*model.ContactUsage),
		packages:  make(map[string]*model.Package),
		userLocks: make(map[string]*sync.Mutex),
	}
}

// InjectConflicts makes the next n commits fail with domain.ErrTxConflict.
func (s *Store) InjectConflicts(n int) {
	s.conflicts.Store(int32(n))
}

func (s *Store) userLock(userID string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.userLocks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.userLocks[userID] = l
	}
	return l
}

// memTx stages writes made inside WithUserTx.
type memTx struct {
	userID    string
	subs      map[string]*model.Subscription
	usage     map[string]*model.ContactUsage
	purchases []*model.Purchase
	packages  map[string]*model.Package
}

func newMemTx(userID string) *memTx {
	return &memTx{
		userID:   userID,
		subs:     map[string]*model.Subscription{},
		usage:    map[string]*model.ContactUsage{},
		packages: map[string]*model.Package{},
	}
}

var _ repository.TransactionManager = (*Store)(nil)

func (s *Store) WithUserTx(ctx context.Context, userID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	if userID == "" {
		return domain.ErrInvalidArgument
	}
	if err := ctx.Err(); err != nil {
		return domain.ErrStoreUnavailable
	}
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	tx := newMemTx(userID)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	for {
		n := s.conflicts.Load()
		if n <= 0 {
			break
		}
		if s.conflicts.CompareAndSwap(n, n-1) {
			return domain.ErrTxConflict
		}
	}
	return s.commit(tx)
}

// commit applies the staged writes. Payment ids are re-checked under the write lock
// because two users' transactions may stage the same one concurrently.
func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range tx.purchases {
		if hasPayment(s.purchases, p.PaymentID) {
			return domain.ErrAlreadyExists
		}
	}
	for k, v := range tx.subs {
		s.subs[k] = v
	}
	for k, v := range tx.usage {
		s.usage[k] = v
	}
	for k, v := range tx.packages {
		s.packages[k] = v
	}
	s.purchases = append(s.purchases, tx.purchases...)
	return nil
}

func asTx(tx repository.Tx) (*memTx, error) {
	switch v := tx.(type) {
	case nil:
		return nil, nil
	case *memTx:
		return v, nil
	default:
		return nil, domain.ErrInvalidExecContext
	}
}
