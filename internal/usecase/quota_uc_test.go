//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/usecase"
)

var jan1 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // a Monday

func TestQuota_PlatinumWeekScenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)

	res := h.subs.Activate(ctx, "u1", "platinum", usecase.ActivateOptions{})
	require.True(t, res.Success, res.Error)
	require.True(t, h.usage("u1").WeeklyResetAt.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))

	for i := 0; i < 12; i++ {
		h.clock.Set(jan1.Add(time.Duration(i) * 12 * time.Hour))
		r := h.quota.RecordContact(ctx, "u1", fmt.Sprintf("p%02d", i))
		require.True(t, r.Success, "contact %d: %s", i, r.Error)
		assert.False(t, r.AlreadyContacted)
	}
	u := h.usage("u1")
	assert.Equal(t, 12, u.WeeklyCount)
	assert.Equal(t, 12, u.TotalCount)

	h.clock.Set(time.Date(2024, 1, 6, 12, 0, 0, 0, time.UTC))
	r := h.quota.RecordContact(ctx, "u1", "p12")
	assert.False(t, r.Success)
	assert.Equal(t, usecase.ReasonWeeklyLimit, r.Reason)
	assert.Equal(t, "weekly limit reached", r.Error)
	assert.Equal(t, 12, r.WeeklyUsed)
	assert.Equal(t, 12, r.WeeklyLimit)
	assert.Equal(t, 180, r.TotalLimit)
	assert.False(t, r.Retryable)

	h.clock.Set(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC))
	r = h.quota.RecordContact(ctx, "u1", "p12")
	require.True(t, r.Success, r.Error)
	u = h.usage("u1")
	assert.Equal(t, 1, u.WeeklyCount)
	assert.Equal(t, 13, u.TotalCount)
	assert.True(t, u.WeeklyResetAt.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
	assert.Len(t, u.ContactedProfileIDs, u.TotalCount)
}

func TestQuota_RecontactIsFree(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	require.True(t, h.subs.Activate(ctx, "u1", "silver", usecase.ActivateOptions{}).Success)

	first := h.quota.RecordContact(ctx, "u1", "p1")
	require.True(t, first.Success)
	require.False(t, first.AlreadyContacted)

	for i := 0; i < 3; i++ {
		again := h.quota.RecordContact(ctx, "u1", "p1")
		assert.True(t, again.Success)
		assert.True(t, again.AlreadyContacted)
	}
	u := h.usage("u1")
	assert.Equal(t, 1, u.WeeklyCount)
	assert.Equal(t, 1, u.TotalCount)

	d := h.quota.CheckCanContact(ctx, "u1", "p1")
	assert.True(t, d.Allowed)
	assert.True(t, d.AlreadyContacted)
}

func TestQuota_RecontactAllowedAtCap(t *testing.T) {
	ctx := context.Background()
	pkg, err := model.NewPackage("tiny", "Tiny", 1, 2, 2, decimal.NewFromInt(10), "INR")
	require.NoError(t, err)
	h := newHarness(jan1, pkg)
	require.True(t, h.subs.Activate(ctx, "u1", "tiny", usecase.ActivateOptions{}).Success)

	require.True(t, h.quota.RecordContact(ctx, "u1", "a").Success)
	require.True(t, h.quota.RecordContact(ctx, "u1", "b").Success)

	r := h.quota.RecordContact(ctx, "u1", "c")
	assert.False(t, r.Success)
	assert.Equal(t, usecase.ReasonWeeklyLimit, r.Reason, "weekly is checked before total")

	r = h.quota.RecordContact(ctx, "u1", "a")
	assert.True(t, r.Success)
	assert.True(t, r.AlreadyContacted)
}

func TestQuota_TotalLimit(t *testing.T) {
	ctx := context.Background()
	pkg, err := model.NewPackage("trial", "Trial", 1, 5, 3, decimal.Zero, "INR")
	require.NoError(t, err)
	h := newHarness(jan1, pkg)
	require.True(t, h.subs.Activate(ctx, "u1", "trial", usecase.ActivateOptions{}).Success)

	for _, p := range []string{"a", "b", "c"} {
		require.True(t, h.quota.RecordContact(ctx, "u1", p).Success)
	}
	d := h.quota.CheckCanContact(ctx, "u1", "d")
	assert.False(t, d.Allowed)
	assert.Equal(t, usecase.ReasonTotalLimit, d.Reason)
	assert.Equal(t, 3, d.TotalUsed)
	assert.Equal(t, 3, d.TotalLimit)

	// a new week does not lift the lifetime cap
	h.clock.Set(jan1.AddDate(0, 0, 7))
	r := h.quota.RecordContact(ctx, "u1", "d")
	assert.False(t, r.Success)
	assert.Equal(t, usecase.ReasonTotalLimit, r.Reason)
	assert.Equal(t, 3, h.usage("u1").TotalCount)
}

func TestQuota_WeeklyResetBoundary(t *testing.T) {
	ctx := context.Background()
	pkg, err := model.NewPackage("one", "One a week", 3, 1, 10, decimal.Zero, "INR")
	require.NoError(t, err)
	h := newHarness(jan1.Add(10*time.Hour), pkg)
	require.True(t, h.subs.Activate(ctx, "u1", "one", usecase.ActivateOptions{}).Success)
	require.True(t, h.quota.RecordContact(ctx, "u1", "a").Success)

	resetAt := h.usage("u1").WeeklyResetAt
	require.True(t, resetAt.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))

	t.Run("one second before the boundary does not reset", func(t *testing.T) {
		h.clock.Set(resetAt.Add(-time.Second))
		r := h.quota.RecordContact(ctx, "u1", "b")
		assert.False(t, r.Success)
		assert.Equal(t, usecase.ReasonWeeklyLimit, r.Reason)
		assert.True(t, h.usage("u1").WeeklyResetAt.Equal(resetAt))
	})

	t.Run("exactly at the boundary resets before counting", func(t *testing.T) {
		h.clock.Set(resetAt)
		r := h.quota.RecordContact(ctx, "u1", "b")
		require.True(t, r.Success, r.Error)
		u := h.usage("u1")
		assert.Equal(t, 1, u.WeeklyCount)
		assert.Equal(t, 2, u.TotalCount)
		assert.True(t, u.WeeklyResetAt.Equal(model.NextWeeklyBoundary(resetAt, time.UTC)))
	})
}

func TestQuota_CheckIsReadOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)
	require.True(t, h.quota.RecordContact(ctx, "u1", "a").Success)

	h.clock.Set(jan1.AddDate(0, 0, 9))
	d := h.quota.CheckCanContact(ctx, "u1", "b")
	assert.True(t, d.Allowed)
	assert.Equal(t, 0, d.WeeklyUsed, "due reset is applied virtually")
	assert.Equal(t, 1, d.TotalUsed)

	u := h.usage("u1")
	assert.Equal(t, 1, u.WeeklyCount)
	assert.True(t, u.WeeklyResetAt.Equal(time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)))
}

func TestQuota_EntitlementFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("no subscription", func(t *testing.T) {
		h := newHarness(jan1)
		d := h.quota.CheckCanContact(ctx, "u1", "p1")
		assert.False(t, d.Allowed)
		assert.Equal(t, usecase.ReasonNoActivePackage, d.Reason)
		assert.True(t, d.Reason.IsEntitlement())

		r := h.quota.RecordContact(ctx, "u1", "p1")
		assert.False(t, r.Success)
		assert.Equal(t, "no active package", r.Error)
		assert.Nil(t, h.usage("u1"), "refusals never write")
	})

	t.Run("expired at the expiry instant", func(t *testing.T) {
		h := newHarness(jan1)
		res := h.subs.Activate(ctx, "u1", "silver", usecase.ActivateOptions{})
		require.True(t, res.Success)
		h.clock.Set(res.Subscription.ExpiryDate)

		d := h.quota.CheckCanContact(ctx, "u1", "p1")
		assert.False(t, d.Allowed)
		assert.Equal(t, usecase.ReasonPackageExpired, d.Reason)
		assert.True(t, d.IsExpired)
		assert.Equal(t, 5, d.WeeklyLimit)

		r := h.quota.RecordContact(ctx, "u1", "p1")
		assert.False(t, r.Success)
		assert.True(t, r.IsExpired)
	})

	t.Run("expired beats a previously contacted profile", func(t *testing.T) {
		h := newHarness(jan1)
		res := h.subs.Activate(ctx, "u1", "silver", usecase.ActivateOptions{})
		require.True(t, h.quota.RecordContact(ctx, "u1", "p1").Success)
		h.clock.Set(res.Subscription.ExpiryDate.Add(time.Hour))

		r := h.quota.RecordContact(ctx, "u1", "p1")
		assert.False(t, r.Success)
		assert.False(t, r.AlreadyContacted)
		assert.Equal(t, usecase.ReasonPackageExpired, r.Reason)
	})

	t.Run("inactive after expire op", func(t *testing.T) {
		h := newHarness(jan1)
		require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)
		require.True(t, h.subs.Expire(ctx, "u1").Success)

		d := h.quota.CheckCanContact(ctx, "u1", "p1")
		assert.Equal(t, usecase.ReasonPackageInactive, d.Reason)
		assert.False(t, d.IsExpired)
	})

	t.Run("unknown package is a data-integrity fault", func(t *testing.T) {
		h := newHarness(jan1)
		sub, err := model.NewSubscription("u1", "diamond", jan1, 1)
		require.NoError(t, err)
		require.NoError(t, h.subsRepo.Save(ctx, repository.NoTX, sub))

		d := h.quota.CheckCanContact(ctx, "u1", "p1")
		assert.False(t, d.Allowed)
		assert.Equal(t, usecase.ReasonInvalidPackage, d.Reason)

		r := h.quota.RecordContact(ctx, "u1", "p1")
		assert.Equal(t, "invalid package, contact support", r.Error)
	})

	t.Run("empty ids", func(t *testing.T) {
		h := newHarness(jan1)
		assert.Equal(t, usecase.ReasonInvalidArgument, h.quota.CheckCanContact(ctx, "", "p1").Reason)
		assert.Equal(t, usecase.ReasonInvalidArgument, h.quota.RecordContact(ctx, "u1", " ").Reason)
	})
}

func TestQuota_ConcurrentContactsNeverOvershoot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)
	const n = 40 // gold allows 8 a week

	var ok, limited atomic.Int32
	var g errgroup.Group
	for i := 0; i < n; i++ {
		g.Go(func() error {
			r := h.quota.RecordContact(ctx, "u1", fmt.Sprintf("p%d", i))
			switch {
			case r.Success:
				ok.Add(1)
			case r.Reason == usecase.ReasonWeeklyLimit:
				limited.Add(1)
			default:
				return errors.New(r.Error)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.EqualValues(t, 8, ok.Load())
	assert.EqualValues(t, n-8, limited.Load())
	u := h.usage("u1")
	assert.Equal(t, 8, u.WeeklyCount)
	assert.Equal(t, 8, u.TotalCount)
	assert.Len(t, u.ContactedProfileIDs, 8)
}

func TestQuota_ConcurrentSameProfileCountsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)

	var fresh atomic.Int32
	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			r := h.quota.RecordContact(ctx, "u1", "same")
			if !r.Success {
				return errors.New(r.Error)
			}
			if !r.AlreadyContacted {
				fresh.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	assert.EqualValues(t, 1, fresh.Load())
	assert.Equal(t, 1, h.usage("u1").TotalCount)
}

func TestQuota_RetriesConflicts(t *testing.T) {
	ctx := context.Background()

	t.Run("conflicts within the attempt budget succeed", func(t *testing.T) {
		h := newHarness(jan1)
		require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)
		h.store.InjectConflicts(2)

		r := h.quota.RecordContact(ctx, "u1", "p1")
		require.True(t, r.Success, r.Error)
		assert.Equal(t, 1, h.usage("u1").TotalCount)
	})

	t.Run("exhausted attempts surface a retryable failure", func(t *testing.T) {
		h := newHarness(jan1)
		require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)
		h.store.InjectConflicts(3)

		r := h.quota.RecordContact(ctx, "u1", "p1")
		assert.False(t, r.Success)
		assert.Equal(t, usecase.ReasonStoreUnavailable, r.Reason)
		assert.True(t, r.Retryable)
		assert.Equal(t, 0, h.usage("u1").TotalCount)

		// the caller's retry is safe
		r = h.quota.RecordContact(ctx, "u1", "p1")
		assert.True(t, r.Success)
		assert.Equal(t, 1, h.usage("u1").TotalCount)
	})
}

func TestQuota_StoreFailuresAreTyped(t *testing.T) {
	ctx := context.Background()
	catalog, err := usecase.NewPackageCatalog(model.DefaultPackages())
	require.NoError(t, err)
	down := errors.New("dial tcp: connection refused")

	subs := &MockSubscriptionRepo{
		FindByUserFunc: func(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
			return nil, down
		},
	}
	tm := &MockTxManager{}
	uc := usecase.NewQuotaUseCase(usecase.QuotaDeps{
		Catalog:       catalog,
		Subscriptions: subs,
		Usage:         &MockContactUsageRepo{},
		Tx:            tm,
	}, usecase.QuotaOptions{Logger: newTestLogger(), Clock: func() time.Time { return jan1 }})

	d := uc.CheckCanContact(ctx, "u1", "p1")
	assert.False(t, d.Allowed)
	assert.Equal(t, usecase.ReasonStoreUnavailable, d.Reason)
	assert.True(t, d.Retryable)

	r := uc.RecordContact(ctx, "u1", "p1")
	assert.False(t, r.Success)
	assert.Equal(t, "store unavailable", r.Error)
	assert.True(t, r.Retryable)
	assert.Equal(t, 1, tm.Calls, "non-conflict errors are not retried")
}

func TestQuota_SaveFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	catalog, _ := usecase.NewPackageCatalog(model.DefaultPackages())
	sub, _ := model.NewSubscription("u1", "gold", jan1, 6)

	var saves int
	uc := usecase.NewQuotaUseCase(usecase.QuotaDeps{
		Catalog: catalog,
		Subscriptions: &MockSubscriptionRepo{
			FindByUserFunc: func(context.Context, repository.Tx, string) (*model.Subscription, error) { return sub, nil },
		},
		Usage: &MockContactUsageRepo{
			SaveFunc: func(context.Context, repository.Tx, *model.ContactUsage) error {
				saves++
				return domain.ErrStoreUnavailable
			},
		},
		Tx: &MockTxManager{},
	}, usecase.QuotaOptions{Logger: newTestLogger(), Clock: func() time.Time { return jan1 }})

	r := uc.RecordContact(ctx, "u1", "p1")
	assert.False(t, r.Success)
	assert.Equal(t, usecase.ReasonStoreUnavailable, r.Reason)
	assert.Equal(t, 1, saves)
}

func TestQuota_Usage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)

	_, err := h.quota.Usage(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNoActivePackage)

	require.True(t, h.subs.Activate(ctx, "u1", "platinum", usecase.ActivateOptions{}).Success)
	require.True(t, h.quota.RecordContact(ctx, "u1", "a").Success)

	snap, err := h.quota.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "platinum", snap.PackageID)
	assert.Equal(t, 1, snap.WeeklyUsed)
	assert.Equal(t, 12, snap.WeeklyLimit)
	assert.Equal(t, 180, snap.TotalLimit)
	assert.True(t, snap.IsActive)

	h.clock.Set(jan1.AddDate(0, 0, 8))
	snap, err = h.quota.Usage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.WeeklyUsed)
	assert.Equal(t, 1, snap.TotalUsed)
	assert.True(t, snap.WeeklyResetAt.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)))
}
