package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
	"matrimony-subscription/internal/infra/logging"
	"matrimony-subscription/internal/infra/metrics"
)

var tracer = otel.Tracer("matrimony-subscription/internal/usecase")

// QuotaUseCase gates "contact" actions against the user's package caps.
type QuotaUseCase interface {
	// CheckCanContact is advisory: it never writes and may be stale by the time
	// RecordContact runs.
	CheckCanContact(ctx context.Context, userID, profileID string) Decision
	// RecordContact atomically checks and consumes one contact for profileID.
	// Re-contacting a known profile is free.
	RecordContact(ctx context.Context, userID, profileID string) ContactResult
	// Usage returns the user's counters with any due weekly reset applied virtually.
	Usage(ctx context.Context, userID string) (*UsageSnapshot, error)
}

var _ QuotaUseCase = (*quotaUC)(nil)

type QuotaDeps struct {
	Catalog       *PackageCatalog
	Subscriptions repository.SubscriptionRepository
	Usage         repository.ContactUsageRepository
	Tx            repository.TransactionManager
}

type QuotaOptions struct {
	Location *time.Location
	Retry    RetryPolicy
	Clock    Clock
	Logger   *zerolog.Logger
}

type quotaUC struct {
	catalog *PackageCatalog
	subs    repository.SubscriptionRepository
	usage   repository.ContactUsageRepository
	tx      txRunner
	loc     *time.Location
	now     Clock
	log     *zerolog.Logger
}

func NewQuotaUseCase(deps QuotaDeps, opts QuotaOptions) QuotaUseCase {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	log := logging.Component(opts.Logger, "quota")
	return &quotaUC{
		catalog: deps.Catalog,
		subs:    deps.Subscriptions,
		usage:   deps.Usage,
		tx:      newTxRunner(deps.Tx, opts.Retry, log),
		loc:     opts.Location,
		now:     opts.Clock,
		log:     log,
	}
}

// entitlement resolves the user's subscription and package. The package is returned
// alongside expiry/inactive errors so callers can still show limits.
func (q *quotaUC) entitlement(ctx context.Context, tx repository.Tx, userID string, now time.Time) (*model.Subscription, *model.Package, error) {
	sub, err := q.subs.FindByUser(ctx, tx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil, domain.ErrNoActivePackage
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load subscription: %w", err)
	}
	pkg, known := q.catalog.PackageByID(sub.PackageID)
	if sub.IsExpired(now) {
		return sub, pkg, domain.ErrPackageExpired
	}
	if !sub.IsActive {
		return sub, pkg, domain.ErrPackageInactive
	}
	if !known {
		logging.With(ctx, q.log).Error().
			Str("package_id", sub.PackageID).
			Msg("subscription references a package missing from the catalog")
		return sub, nil, domain.ErrInvalidPackage
	}
	return sub, pkg, nil
}

func (q *quotaUC) loadUsage(ctx context.Context, tx repository.Tx, userID string, now time.Time) (*model.ContactUsage, error) {
	u, err := q.usage.FindByUser(ctx, tx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return model.NewContactUsage(userID, now, q.loc), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load contact usage: %w", err)
	}
	return u, nil
}

func validIDs(ids ...string) bool {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return false
		}
	}
	return true
}

func (q *quotaUC) CheckCanContact(ctx context.Context, userID, profileID string) Decision {
	ctx, span := tracer.Start(ctx, "QuotaUC.CheckCanContact")
	defer span.End()
	ctx = logging.WithUserID(ctx, userID)

	d := q.checkCanContact(ctx, userID, profileID)
	span.SetAttributes(attribute.Bool("quota.allowed", d.Allowed), attribute.String("quota.reason", string(d.Reason)))
	metrics.IncContactCheck(d.Allowed, string(d.Reason))
	return d
}

func (q *quotaUC) checkCanContact(ctx context.Context, userID, profileID string) Decision {
	if !validIDs(userID, profileID) {
		return Decision{Reason: ReasonInvalidArgument}
	}
	now := q.now()

	_, pkg, err := q.entitlement(ctx, repository.NoTX, userID, now)
	if err != nil {
		return q.refusal(ctx, err, pkg)
	}
	u, err := q.loadUsage(ctx, repository.NoTX, userID, now)
	if err != nil {
		return q.refusal(ctx, err, pkg)
	}

	weekly := u.EffectiveWeeklyCount(now)
	n := usageOf(u, weekly, pkg)
	d := Decision{
		WeeklyUsed:  n.weeklyUsed,
		WeeklyLimit: n.weeklyLimit,
		TotalUsed:   n.totalUsed,
		TotalLimit:  n.totalLimit,
	}
	if u.HasContacted(profileID) {
		d.Allowed = true
		d.AlreadyContacted = true
		return d
	}
	if err := u.CheckCaps(weekly, pkg); err != nil {
		d.Reason = ReasonFor(err)
		return d
	}
	d.Allowed = true
	return d
}

func (q *quotaUC) refusal(ctx context.Context, err error, pkg *model.Package) Decision {
	r := ReasonFor(err)
	if r == ReasonStoreUnavailable {
		logging.With(ctx, q.log).Warn().Err(err).Msg("quota check hit a store failure")
	}
	n := usageOf(nil, 0, pkg)
	return Decision{
		Reason:      r,
		WeeklyUsed:  n.weeklyUsed,
		WeeklyLimit: n.weeklyLimit,
		TotalUsed:   n.totalUsed,
		TotalLimit:  n.totalLimit,
		IsExpired:   r == ReasonPackageExpired,
		Retryable:   r.Retryable(),
	}
}

func (q *quotaUC) RecordContact(ctx context.Context, userID, profileID string) ContactResult {
	ctx, span := tracer.Start(ctx, "QuotaUC.RecordContact")
	defer span.End()
	ctx = logging.WithUserID(ctx, userID)
	log := logging.With(ctx, q.log)
	defer logging.TraceDuration(log, "QuotaUC.RecordContact")()

	res := q.recordContact(ctx, userID, profileID)

	outcome := "counted"
	switch {
	case res.AlreadyContacted:
		outcome = "already_contacted"
	case !res.Success && res.Retryable:
		outcome = "failed"
		span.SetStatus(codes.Error, res.Error)
	case !res.Success:
		outcome = "rejected"
	}
	span.SetAttributes(attribute.String("quota.outcome", outcome), attribute.String("quota.reason", string(res.Reason)))
	metrics.IncContactRecord(outcome, string(res.Reason))
	log.Debug().
		Str("profile_id", profileID).
		Str("outcome", outcome).
		Int("weekly_used", res.WeeklyUsed).
		Int("total_used", res.TotalUsed).
		Msg("contact recorded")
	return res
}

func (q *quotaUC) recordContact(ctx context.Context, userID, profileID string) ContactResult {
	if !validIDs(userID, profileID) {
		return ContactResult{Error: string(ReasonInvalidArgument), Reason: ReasonInvalidArgument}
	}

	var (
		res    ContactResult
		pkg    *model.Package
		counts usage
	)
	err := q.tx.run(ctx, userID, func(ctx context.Context, tx repository.Tx) error {
		res, pkg, counts = ContactResult{}, nil, usage{}
		now := q.now()

		var err error
		_, pkg, err = q.entitlement(ctx, tx, userID, now)
		if err != nil {
			counts = usageOf(nil, 0, pkg)
			return err
		}
		u, err := q.loadUsage(ctx, tx, userID, now)
		if err != nil {
			counts = usageOf(nil, 0, pkg)
			return err
		}
		if u.HasContacted(profileID) {
			res.AlreadyContacted = true
			counts = usageOf(u, u.EffectiveWeeklyCount(now), pkg)
			return nil
		}

		u.ApplyWeeklyReset(now, q.loc)
		counts = usageOf(u, u.WeeklyCount, pkg)
		if err := u.CheckCaps(u.WeeklyCount, pkg); err != nil {
			return err
		}
		u.Record(profileID, now)
		if err := q.usage.Save(ctx, tx, u); err != nil {
			return fmt.Errorf("save contact usage: %w", err)
		}
		counts = usageOf(u, u.WeeklyCount, pkg)
		return nil
	})

	res.WeeklyUsed, res.WeeklyLimit = counts.weeklyUsed, counts.weeklyLimit
	res.TotalUsed, res.TotalLimit = counts.totalUsed, counts.totalLimit
	if err != nil {
		r := ReasonFor(err)
		if r == ReasonStoreUnavailable {
			logging.With(ctx, q.log).Warn().Err(err).Msg("contact not recorded: store failure")
		}
		res.Success = false
		res.AlreadyContacted = false
		res.Reason = r
		res.Error = string(r)
		res.IsExpired = r == ReasonPackageExpired
		res.Retryable = r.Retryable()
		return res
	}
	res.Success = true
	return res
}

func (q *quotaUC) Usage(ctx context.Context, userID string) (*UsageSnapshot, error) {
	if !validIDs(userID) {
		return nil, domain.ErrInvalidArgument
	}
	now := q.now()
	sub, pkg, err := q.entitlement(ctx, repository.NoTX, userID, now)
	switch {
	case errors.Is(err, domain.ErrPackageExpired), errors.Is(err, domain.ErrPackageInactive):
		if pkg == nil {
			return nil, domain.ErrInvalidPackage
		}
	case err != nil:
		return nil, err
	}
	u, err := q.loadUsage(ctx, repository.NoTX, userID, now)
	if err != nil {
		return nil, err
	}
	resetAt := u.WeeklyResetAt
	if u.ResetDue(now) {
		resetAt = model.NextWeeklyBoundary(now, q.loc)
	}
	return &UsageSnapshot{
		PackageID:     sub.PackageID,
		WeeklyUsed:    u.EffectiveWeeklyCount(now),
		WeeklyLimit:   pkg.WeeklyContactCap,
		TotalUsed:     u.TotalCount,
		TotalLimit:    pkg.TotalContactCap,
		WeeklyResetAt: resetAt,
		ExpiryDate:    sub.ExpiryDate,
		IsActive:      sub.IsActive,
		IsExpired:     sub.IsExpired(now),
	}, nil
}
