package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
)

const (
	defaultPurchaseLimit = 50
	maxPurchaseLimit     = 500
)

// ActivateOptions tunes a single activation. The zero value activates for the package's
// own validity as an admin action.
type ActivateOptions struct {
	CustomMonths int // 0 means the package validity
	Source       model.PurchaseSource
	PaymentID    string
	OrderID      string
}

// SubscriptionUseCase manages per-user entitlements. Every mutation is serialised per
// user through the transaction manager.
type SubscriptionUseCase interface {
	// Activate starts a fresh subscription, resets contact usage and appends a purchase.
	// It is intentionally not idempotent, except that a PaymentID already on record for
	// the same user is reported as Replayed without changing anything. A PaymentID
	// recorded for another user fails with "payment already used".
	Activate(ctx context.Context, userID, packageID string, opts ActivateOptions) Result
	// Extend pushes expiry forward from the current expiry. Usage is left untouched.
	Extend(ctx context.Context, userID string, months int) Result
	Expire(ctx context.Context, userID string) Result
	Cancel(ctx context.Context, userID string) Result

	GetSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	PurchaseHistory(ctx context.Context, filter model.PurchaseFilter) ([]*model.Purchase, error)
}

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionDeps struct {
	Catalog       *PackageCatalog
	Subscriptions repository.SubscriptionRepository
	Usage         repository.ContactUsageRepository
	Purchases     repository.PurchaseRepository
	Tx            repository.TransactionManager
}

type subscriptionUC struct {
	catalog   *PackageCatalog
	subs      repository.SubscriptionRepository
	usage     repository.ContactUsageRepository
	purchases repository.PurchaseRepository
	tx        txRunner
	loc       *time.Location
	now       Clock
	log       *zerolog.Logger
}

// NewSubscriptionUseCase shares QuotaOptions so both use cases agree on clock and timezone.
func NewSubscriptionUseCase(deps SubscriptionDeps, opts QuotaOptions) SubscriptionUseCase {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	log := logging.Component(opts.Logger, "subscription")
	return &subscriptionUC{
		catalog:   deps.Catalog,
		subs:      deps.Subscriptions,
		usage:     deps.Usage,
		purchases: deps.Purchases,
		tx:        newTxRunner(deps.Tx, opts.Retry, log),
		loc:       opts.Location,
		now:       opts.Clock,
		log:       log,
	}
}

func (s *subscriptionUC) finish(ctx context.Context, op string, res Result, err error) Result {
	log := logging.With(ctx, s.log)
	if err != nil {
		res = failResult(err)
		if res.Reason == ReasonStoreUnavailable {
			log.Error().Err(err).Str("op", op).Msg("subscription op failed")
		} else {
			log.Info().Str("op", op).Str("reason", string(res.Reason)).Msg("subscription op refused")
		}
	} else {
		log.Info().Str("op", op).Bool("replayed", res.Replayed).Msg("subscription op applied")
	}
	metrics.IncSubscriptionOp(op, res.Success)
	return res
}

func (s *subscriptionUC) Activate(ctx context.Context, userID, packageID string, opts ActivateOptions) Result {
	ctx, span := tracer.Start(ctx, "SubscriptionUC.Activate")
	defer span.End()
	span.SetAttributes(attribute.String("package.id", packageID))
	ctx = logging.WithUserID(ctx, userID)

	if !validIDs(userID, packageID) || opts.CustomMonths < 0 {
		return s.finish(ctx, "activate", Result{}, domain.ErrInvalidArgument)
	}
	pkg, ok := s.catalog.PackageByID(packageID)
	if !ok {
		return s.finish(ctx, "activate", Result{}, domain.ErrUnknownPackage)
	}
	months := pkg.ValidityMonths
	if opts.CustomMonths > 0 {
		months = opts.CustomMonths
	}
	if opts.Source == "" {
		opts.Source = model.PurchaseSourceAdmin
	}

	var res Result
	err := s.tx.run(ctx, userID, func(ctx context.Context, tx repository.Tx) error {
		res = Result{}
		now := s.now().In(s.loc)

		if opts.PaymentID != "" {
			prior, err := s.purchases.List(ctx, tx, model.PurchaseFilter{PaymentID: opts.PaymentID, Limit: 1})
			if err != nil {
				return fmt.Errorf("lookup payment %s: %w", opts.PaymentID, err)
			}
			if len(prior) > 0 {
				if prior[0].UserID != userID {
					return fmt.Errorf("payment %s: %w", opts.PaymentID, domain.ErrAlreadyExists)
				}
				cur, err := s.subs.FindByUser(ctx, tx, userID)
				if err != nil && !errors.Is(err, domain.ErrNotFound) {
					return fmt.Errorf("load subscription: %w", err)
				}
				res = Result{Success: true, Subscription: cur, Replayed: true}
				return nil
			}
		}

		sub, err := model.NewSubscription(userID, pkg.ID, now, months)
		if err != nil {
			return err
		}
		if err := s.subs.Save(ctx, tx, sub); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		if err := s.usage.Save(ctx, tx, model.NewContactUsage(userID, now, s.loc)); err != nil {
			return fmt.Errorf("reset contact usage: %w", err)
		}
		p := model.NewPurchase(sub, pkg, opts.Source, opts.PaymentID, opts.OrderID, now)
		if err := s.purchases.Append(ctx, tx, p); err != nil {
			return fmt.Errorf("append purchase: %w", err)
		}
		res = okResult(sub)
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return s.finish(ctx, "activate", res, err)
}

// mutate loads the user's subscription inside a per-user transaction, applies fn and saves.
func (s *subscriptionUC) mutate(ctx context.Context, op, userID string, fn func(sub *model.Subscription, now time.Time) error) Result {
	ctx, span := tracer.Start(ctx, "SubscriptionUC."+op)
	defer span.End()
	ctx = logging.WithUserID(ctx, userID)

	if !validIDs(userID) {
		return s.finish(ctx, op, Result{}, domain.ErrInvalidArgument)
	}
	var res Result
	err := s.tx.run(ctx, userID, func(ctx context.Context, tx repository.Tx) error {
		res = Result{}
		now := s.now().In(s.loc)
		sub, err := s.subs.FindByUser(ctx, tx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			return domain.ErrNoActivePackage
		}
		if err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}
		if err := fn(sub, now); err != nil {
			return err
		}
		if err := s.subs.Save(ctx, tx, sub); err != nil {
			return fmt.Errorf("save subscription: %w", err)
		}
		res = okResult(sub)
		return nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
	}
	return s.finish(ctx, op, res, err)
}

func (s *subscriptionUC) Extend(ctx context.Context, userID string, months int) Result {
	if months <= 0 {
		return s.finish(logging.WithUserID(ctx, userID), "extend", Result{}, domain.ErrInvalidArgument)
	}
	return s.mutate(ctx, "extend", userID, func(sub *model.Subscription, now time.Time) error {
		// month arithmetic follows the configured calendar, not the store's UTC
		sub.ExpiryDate = sub.ExpiryDate.In(s.loc)
		return sub.Extend(months, now)
	})
}

func (s *subscriptionUC) Expire(ctx context.Context, userID string) Result {
	return s.mutate(ctx, "expire", userID, func(sub *model.Subscription, now time.Time) error {
		sub.Deactivate(now)
		return nil
	})
}

func (s *subscriptionUC) Cancel(ctx context.Context, userID string) Result {
	return s.mutate(ctx, "cancel", userID, func(sub *model.Subscription, now time.Time) error {
		sub.Deactivate(now)
		at := now
		sub.CancelledAt = &at
		return nil
	})
}

func (s *subscriptionUC) GetSubscription(ctx context.Context, userID string) (*model.Subscription, error) {
	if !validIDs(userID) {
		return nil, domain.ErrInvalidArgument
	}
	return s.subs.FindByUser(ctx, repository.NoTX, userID)
}

func (s *subscriptionUC) PurchaseHistory(ctx context.Context, filter model.PurchaseFilter) ([]*model.Purchase, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultPurchaseLimit
	}
	if filter.Limit > maxPurchaseLimit {
		filter.Limit = maxPurchaseLimit
	}
	return s.purchases.List(ctx, repository.NoTX, filter)
}
