//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/usecase"
)

func TestSubscription_ActivateResetsUsage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)

	require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)
	for _, p := range []string{"a", "b", "c"} {
		require.True(t, h.quota.RecordContact(ctx, "u1", p).Success)
	}

	at := time.Date(2024, 2, 14, 15, 30, 0, 0, time.UTC) // a Wednesday
	h.clock.Set(at)
	res := h.subs.Activate(ctx, "u1", "platinum", usecase.ActivateOptions{})
	require.True(t, res.Success, res.Error)

	u := h.usage("u1")
	assert.Equal(t, 0, u.WeeklyCount)
	assert.Equal(t, 0, u.TotalCount)
	assert.Empty(t, u.ContactedProfileIDs)
	assert.True(t, u.WeeklyResetAt.Equal(model.NextWeeklyBoundary(at, time.UTC)))

	sub, err := h.subs.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "platinum", sub.PackageID)
	assert.True(t, sub.StartDate.Equal(at))
	assert.True(t, sub.ExpiryDate.Equal(at.AddDate(0, 12, 0)))
	assert.True(t, sub.IsActive)

	// a previously contacted profile counts again under the new package
	r := h.quota.RecordContact(ctx, "u1", "a")
	assert.True(t, r.Success)
	assert.False(t, r.AlreadyContacted)
}

func TestSubscription_ActivateIsNotIdempotent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)

	require.True(t, h.subs.Activate(ctx, "u1", "silver", usecase.ActivateOptions{}).Success)
	require.True(t, h.quota.RecordContact(ctx, "u1", "a").Success)
	require.True(t, h.subs.Activate(ctx, "u1", "silver", usecase.ActivateOptions{}).Success)

	assert.Equal(t, 0, h.usage("u1").TotalCount)
	history, err := h.subs.PurchaseHistory(ctx, model.PurchaseFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, p := range history {
		assert.Equal(t, "silver", p.PackageID)
		assert.Equal(t, model.PurchaseSourceAdmin, p.Source)
		assert.Equal(t, "2999", p.Price.String())
		assert.Equal(t, "INR", p.Currency)
		assert.NotEmpty(t, p.ID)
	}
	assert.NotEqual(t, history[0].ID, history[1].ID)
}

func TestSubscription_ActivateCustomMonths(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)
	h := newHarness(start)

	res := h.subs.Activate(ctx, "u1", "silver", usecase.ActivateOptions{CustomMonths: 1})
	require.True(t, res.Success)
	// Jan 31 + 1 month normalises forward in a leap year
	assert.True(t, res.Subscription.ExpiryDate.Equal(time.Date(2024, 3, 2, 9, 0, 0, 0, time.UTC)))

	history, err := h.subs.PurchaseHistory(ctx, model.PurchaseFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].ExpiryDate.Equal(res.Subscription.ExpiryDate))
}

func TestSubscription_ActivateRejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)

	res := h.subs.Activate(ctx, "u1", "diamond", usecase.ActivateOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, usecase.ReasonUnknownPackage, res.Reason)

	res = h.subs.Activate(ctx, "", "gold", usecase.ActivateOptions{})
	assert.Equal(t, usecase.ReasonInvalidArgument, res.Reason)

	res = h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{CustomMonths: -1})
	assert.Equal(t, usecase.ReasonInvalidArgument, res.Reason)

	_, err := h.subs.GetSubscription(ctx, "u1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSubscription_ActivatePaymentReplay(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	opts := usecase.ActivateOptions{Source: model.PurchaseSourcePayment, PaymentID: "pay_1", OrderID: "order_1"}

	first := h.subs.Activate(ctx, "u1", "gold", opts)
	require.True(t, first.Success)
	require.False(t, first.Replayed)
	require.True(t, h.quota.RecordContact(ctx, "u1", "a").Success)

	h.clock.Set(jan1.Add(time.Hour))
	again := h.subs.Activate(ctx, "u1", "gold", opts)
	assert.True(t, again.Success)
	assert.True(t, again.Replayed)
	assert.True(t, again.Subscription.StartDate.Equal(jan1))
	assert.Equal(t, 1, h.usage("u1").TotalCount, "replay keeps usage")

	history, err := h.subs.PurchaseHistory(ctx, model.PurchaseFilter{PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubscription_ActivatePaymentBelongsToOneUser(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	opts := usecase.ActivateOptions{Source: model.PurchaseSourcePayment, PaymentID: "pay_1", OrderID: "order_1"}

	require.True(t, h.subs.Activate(ctx, "u1", "platinum", opts).Success)

	res := h.subs.Activate(ctx, "u2", "platinum", opts)
	assert.False(t, res.Success)
	assert.Equal(t, usecase.ReasonPaymentAlreadyUsed, res.Reason)
	assert.Nil(t, res.Subscription)

	_, err := h.subs.GetSubscription(ctx, "u2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Nil(t, h.usage("u2"))
	history, err := h.subs.PurchaseHistory(ctx, model.PurchaseFilter{PaymentID: "pay_1"})
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "u1", history[0].UserID)
}

func TestSubscription_ConcurrentPaymentReuseActivatesOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	opts := usecase.ActivateOptions{Source: model.PurchaseSourcePayment, PaymentID: "pay_1"}
	users := []string{"u1", "u2", "u3", "u4", "u5"}

	results := make([]usecase.Result, len(users))
	var g errgroup.Group
	for i, u := range users {
		g.Go(func() error {
			results[i] = h.subs.Activate(ctx, u, "gold", opts)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	won := 0
	for _, r := range results {
		if r.Success {
			won++
			continue
		}
		assert.Equal(t, usecase.ReasonPaymentAlreadyUsed, r.Reason)
	}
	assert.Equal(t, 1, won)
	history, err := h.subs.PurchaseHistory(ctx, model.PurchaseFilter{PaymentID: "pay_1"})
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestSubscription_ExtendPreservesUsage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	res := h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{})
	require.True(t, res.Success)
	require.True(t, h.quota.RecordContact(ctx, "u1", "a").Success)
	require.True(t, h.quota.RecordContact(ctx, "u1", "b").Success)
	before := h.usage("u1")

	h.clock.Set(jan1.AddDate(0, 2, 0))
	ext := h.subs.Extend(ctx, "u1", 3)
	require.True(t, ext.Success, ext.Error)
	assert.True(t, ext.Subscription.ExpiryDate.Equal(res.Subscription.ExpiryDate.AddDate(0, 3, 0)), "extends from the current expiry")
	assert.True(t, ext.Subscription.StartDate.Equal(jan1))

	assert.Equal(t, before, h.usage("u1"))
}

func TestSubscription_ExtendReactivates(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	require.True(t, h.subs.Activate(ctx, "u1", "silver", usecase.ActivateOptions{}).Success)
	require.True(t, h.subs.Cancel(ctx, "u1").Success)

	sub, err := h.subs.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	require.False(t, sub.IsActive)
	require.NotNil(t, sub.CancelledAt)

	ext := h.subs.Extend(ctx, "u1", 1)
	require.True(t, ext.Success)
	assert.True(t, ext.Subscription.IsActive)
	assert.Nil(t, ext.Subscription.CancelledAt)
	assert.True(t, h.quota.CheckCanContact(ctx, "u1", "p").Allowed)
}

func TestSubscription_ExtendRejects(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)

	res := h.subs.Extend(ctx, "u1", 1)
	assert.False(t, res.Success)
	assert.Equal(t, usecase.ReasonNoActivePackage, res.Reason)

	require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)
	res = h.subs.Extend(ctx, "u1", 0)
	assert.Equal(t, usecase.ReasonInvalidArgument, res.Reason)
}

func TestSubscription_ExpireAndCancelKeepUsage(t *testing.T) {
	ctx := context.Background()

	for _, op := range []string{"expire", "cancel"} {
		t.Run(op, func(t *testing.T) {
			h := newHarness(jan1)
			require.True(t, h.subs.Activate(ctx, "u1", "gold", usecase.ActivateOptions{}).Success)
			require.True(t, h.quota.RecordContact(ctx, "u1", "a").Success)
			before := h.usage("u1")

			var res usecase.Result
			if op == "expire" {
				res = h.subs.Expire(ctx, "u1")
			} else {
				res = h.subs.Cancel(ctx, "u1")
			}
			require.True(t, res.Success)
			assert.False(t, res.Subscription.IsActive)
			assert.Equal(t, op == "cancel", res.Subscription.CancelledAt != nil)
			assert.Equal(t, before, h.usage("u1"))
		})
	}
}

func TestSubscription_ConcurrentActivationsSerialise(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)

	var g errgroup.Group
	for _, id := range []string{"silver", "gold", "platinum", "gold", "silver", "platinum"} {
		g.Go(func() error {
			if res := h.subs.Activate(ctx, "u1", id, usecase.ActivateOptions{}); !res.Success {
				return errors.New(res.Error)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	history, err := h.subs.PurchaseHistory(ctx, model.PurchaseFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, history, 6)

	sub, err := h.subs.GetSubscription(ctx, "u1")
	require.NoError(t, err)
	pkg, ok := h.catalog.PackageByID(sub.PackageID)
	require.True(t, ok)
	assert.True(t, sub.ExpiryDate.Equal(jan1.AddDate(0, pkg.ValidityMonths, 0)), "subscription is one writer's whole result")
}

func TestSubscription_StoreFailure(t *testing.T) {
	ctx := context.Background()
	catalog, _ := usecase.NewPackageCatalog(model.DefaultPackages())
	uc := usecase.NewSubscriptionUseCase(usecase.SubscriptionDeps{
		Catalog: catalog,
		Subscriptions: &MockSubscriptionRepo{
			SaveFunc: func(context.Context, repository.Tx, *model.Subscription) error {
				return errors.New("connection reset")
			},
		},
		Usage: &MockContactUsageRepo{},
		Tx:    &MockTxManager{},
	}, usecase.QuotaOptions{Logger: newTestLogger()})

	res := uc.Activate(ctx, "u1", "gold", usecase.ActivateOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, usecase.ReasonStoreUnavailable, res.Reason)
	assert.True(t, res.Reason.Retryable())
}

func TestSubscription_PurchaseHistoryLimit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(jan1)
	for i := 0; i < 60; i++ {
		h.clock.Set(jan1.Add(time.Duration(i) * time.Minute))
		require.True(t, h.subs.Activate(ctx, "u1", "silver", usecase.ActivateOptions{}).Success)
	}
	history, err := h.subs.PurchaseHistory(ctx, model.PurchaseFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Len(t, history, 50)
	assert.True(t, history[0].CreatedAt.After(history[49].CreatedAt))
}
