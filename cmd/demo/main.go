package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"matrimony-subscription/internal/config"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/infra/db/memory"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/usecase"
)

// demo walks the platinum scenario on the in-memory store with a pinned clock:
// twelve concurrent contacts in the first week, a refused thirteenth, and the
// same call succeeding after the Monday reset.

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func main() {
	logger := logging.New(config.LogConfig{Level: "warn", Format: "console"}, true)
	ctx := context.Background()

	catalog, err := usecase.NewPackageCatalog(model.DefaultPackages())
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}
	st := memory.NewStore()
	clk := &clock{now: time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)} // a Monday
	opts := usecase.QuotaOptions{Location: time.UTC, Clock: clk.Now, Logger: logger}

	subs := usecase.NewSubscriptionUseCase(usecase.SubscriptionDeps{
		Catalog:       catalog,
		Subscriptions: memory.NewSubscriptionRepo(st),
		Usage:         memory.NewContactUsageRepo(st),
		Purchases:     memory.NewPurchaseRepo(st),
		Tx:            st,
	}, opts)
	quota := usecase.NewQuotaUseCase(usecase.QuotaDeps{
		Catalog:       catalog,
		Subscriptions: memory.NewSubscriptionRepo(st),
		Usage:         memory.NewContactUsageRepo(st),
		Tx:            st,
	}, opts)

	const user = "demo-user"
	res := subs.Activate(ctx, user, "platinum", usecase.ActivateOptions{Source: model.PurchaseSourceAdmin})
	if !res.Success {
		log.Fatalf("activate: %s", res.Error)
	}
	fmt.Printf("activated platinum, expires %s\n", res.Subscription.ExpiryDate.Format(time.RFC3339))
	printUsage(ctx, quota, user)

	// ---- week 1: twelve distinct profiles at once ----
	clk.Set(time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC))
	g, gctx := errgroup.WithContext(ctx)
	for i := 1; i <= 12; i++ {
		profile := fmt.Sprintf("profile-%02d", i)
		g.Go(func() error {
			r := quota.RecordContact(gctx, user, profile)
			if !r.Success {
				return fmt.Errorf("%s: %s", profile, r.Error)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatalf("week 1 contacts: %v", err)
	}
	fmt.Println("recorded 12 contacts concurrently")
	printUsage(ctx, quota, user)

	// ---- the thirteenth on Saturday ----
	clk.Set(time.Date(2024, 1, 6, 18, 0, 0, 0, time.UTC))
	r := quota.RecordContact(ctx, user, "profile-13")
	fmt.Printf("Jan 6 profile-13: success=%v error=%q\n", r.Success, r.Error)

	again := quota.RecordContact(ctx, user, "profile-03")
	fmt.Printf("Jan 6 profile-03 again: success=%v already_contacted=%v\n", again.Success, again.AlreadyContacted)

	// ---- after the weekly reset ----
	clk.Set(time.Date(2024, 1, 8, 8, 0, 0, 0, time.UTC))
	r = quota.RecordContact(ctx, user, "profile-13")
	fmt.Printf("Jan 8 profile-13: success=%v weekly=%d/%d total=%d/%d\n",
		r.Success, r.WeeklyUsed, r.WeeklyLimit, r.TotalUsed, r.TotalLimit)
	printUsage(ctx, quota, user)
}

func printUsage(ctx context.Context, quota usecase.QuotaUseCase, user string) {
	u, err := quota.Usage(ctx, user)
	if err != nil {
		log.Fatalf("usage: %v", err)
	}
	fmt.Printf("  usage: weekly %d/%d, total %d/%d, next reset %s\n",
		u.WeeklyUsed, u.WeeklyLimit, u.TotalUsed, u.TotalLimit, u.WeeklyResetAt.Format(time.RFC3339))
}
