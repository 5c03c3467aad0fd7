//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/adapter"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/infra/db/memory"
	"matrimony-subscription/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// testClock is a settable clock shared by a harness.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// harness wires the use cases against the in-memory store.
type harness struct {
	store     *memory.Store
	subsRepo  *memory.SubscriptionRepo
	usageRepo *memory.ContactUsageRepo
	purchases *memory.PurchaseRepo
	clock     *testClock
	catalog   *usecase.PackageCatalog
	quota     usecase.QuotaUseCase
	subs      usecase.SubscriptionUseCase
}

func newHarness(start time.Time, pkgs ...*model.Package) *harness {
	if len(pkgs) == 0 {
		pkgs = model.DefaultPackages()
	}
	catalog, err := usecase.NewPackageCatalog(pkgs)
	if err != nil {
		panic(err)
	}
	h := &harness{
		store:   memory.NewStore(),
		clock:   &testClock{now: start},
		catalog: catalog,
	}
	h.subsRepo = memory.NewSubscriptionRepo(h.store)
	h.usageRepo = memory.NewContactUsageRepo(h.store)
	h.purchases = memory.NewPurchaseRepo(h.store)

	opts := usecase.QuotaOptions{
		Location: time.UTC,
		Retry:    usecase.RetryPolicy{MaxAttempts: 3},
		Clock:    h.clock.Now,
		Logger:   newTestLogger(),
	}
	h.quota = usecase.NewQuotaUseCase(usecase.QuotaDeps{
		Catalog:       catalog,
		Subscriptions: h.subsRepo,
		Usage:         h.usageRepo,
		Tx:            h.store,
	}, opts)
	h.subs = usecase.NewSubscriptionUseCase(usecase.SubscriptionDeps{
		Catalog:       catalog,
		Subscriptions: h.subsRepo,
		Usage:         h.usageRepo,
		Purchases:     h.purchases,
		Tx:            h.store,
	}, opts)
	return h
}

func (h *harness) usage(userID string) *model.ContactUsage {
	u, err := h.usageRepo.FindByUser(context.Background(), repository.NoTX, userID)
	if err != nil {
		return nil
	}
	return u
}

// =============================
// Func-field mocks
// =============================

type MockSubscriptionRepo struct {
	FindByUserFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error)
	SaveFunc       func(ctx context.Context, tx repository.Tx, sub *model.Subscription) error
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (m *MockSubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	if m.FindByUserFunc != nil {
		return m.FindByUserFunc(ctx, tx, userID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockSubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, sub)
	}
	return nil
}

type MockContactUsageRepo struct {
	FindByUserFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.ContactUsage, error)
	SaveFunc       func(ctx context.Context, tx repository.Tx, u *model.ContactUsage) error
}

var _ repository.ContactUsageRepository = (*MockContactUsageRepo)(nil)

func (m *MockContactUsageRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ContactUsage, error) {
	if m.FindByUserFunc != nil {
		return m.FindByUserFunc(ctx, tx, userID)
	}
	return nil, domain.ErrNotFound
}

func (m *MockContactUsageRepo) Save(ctx context.Context, tx repository.Tx, u *model.ContactUsage) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, tx, u)
	}
	return nil
}

type MockPackageRepo struct {
	mu    sync.Mutex
	saved map[string]*model.Package

	SaveFunc    func(ctx context.Context, tx repository.Tx, pkg *model.Package) error
	ListAllFunc func(ctx context.Context, tx repository.Tx) ([]*model.Package, error)
}

var _ repository.PackageRepository = (*MockPackageRepo)(nil)

func NewMockPackageRepo() *MockPackageRepo {
	return &MockPackageRepo{saved: map[string]*model.Package{}}
}

func (m *MockPackageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	if m.SaveFunc != nil {
		if err := m.SaveFunc(ctx, tx, pkg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *pkg
	m.saved[pkg.ID] = &cp
	return nil
}

func (m *MockPackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.saved[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (m *MockPackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx, tx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Package, 0, len(m.saved))
	for _, p := range m.saved {
		out = append(out, p)
	}
	return out, nil
}

// MockTxManager runs fn directly unless WithUserTxFunc is set.
type MockTxManager struct {
	mu    sync.Mutex
	Calls int

	WithUserTxFunc func(ctx context.Context, userID string, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func (m *MockTxManager) WithUserTx(ctx context.Context, userID string, fn func(ctx context.Context, tx repository.Tx) error) error {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.WithUserTxFunc != nil {
		return m.WithUserTxFunc(ctx, userID, fn)
	}
	return fn(ctx, repository.NoTX)
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

var _ adapter.Locker = (*MockLocker)(nil)

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if _, taken := l.held[key]; taken {
		return "", domain.ErrLockNotAcquired
	}
	l.held[key] = "tok-" + key
	return l.held[key], nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
	}
	return nil
}

func (l *MockLocker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}

// ---- Payment verifier ----

type MockPaymentVerifier struct {
	VerifyFunc func(ctx context.Context, proof adapter.PaymentProof) error
}

var _ adapter.PaymentVerifier = (*MockPaymentVerifier)(nil)

func (m *MockPaymentVerifier) Name() string { return "mock" }

func (m *MockPaymentVerifier) Verify(ctx context.Context, proof adapter.PaymentProof) error {
	if m.VerifyFunc != nil {
		return m.VerifyFunc(ctx, proof)
	}
	return nil
}
