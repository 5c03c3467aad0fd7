package usecase

import (
	"errors"
	"time"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
)

// Reason is the user-facing explanation attached to a refused or failed operation.
type Reason string

const (
	ReasonNone                 Reason = ""
	ReasonNoActivePackage      Reason = "no active package"
	ReasonPackageExpired       Reason = "package expired"
	ReasonPackageInactive      Reason = "package inactive"
	ReasonInvalidPackage       Reason = "invalid package, contact support"
	ReasonUnknownPackage       Reason = "unknown package"
	ReasonWeeklyLimit          Reason = "weekly limit reached"
	ReasonTotalLimit           Reason = "total limit reached"
	ReasonStoreUnavailable     Reason = "store unavailable"
	ReasonInvalidArgument      Reason = "invalid argument"
	ReasonInvalidSignature     Reason = "invalid payment signature"
	ReasonSubscriptionNotFound Reason = "subscription not found"
	ReasonPaymentAlreadyUsed   Reason = "payment already used"
)

// ReasonFor maps a domain error onto its reason. Anything unrecognised is treated
// as a store failure so raw driver errors never reach callers.
func ReasonFor(err error) Reason {
	switch {
	case err == nil:
		return ReasonNone
	case errors.Is(err, domain.ErrNoActivePackage):
		return ReasonNoActivePackage
	case errors.Is(err, domain.ErrPackageExpired):
		return ReasonPackageExpired
	case errors.Is(err, domain.ErrPackageInactive):
		return ReasonPackageInactive
	case errors.Is(err, domain.ErrInvalidPackage):
		return ReasonInvalidPackage
	case errors.Is(err, domain.ErrUnknownPackage):
		return ReasonUnknownPackage
	case errors.Is(err, domain.ErrWeeklyLimitReached):
		return ReasonWeeklyLimit
	case errors.Is(err, domain.ErrTotalLimitReached):
		return ReasonTotalLimit
	case errors.Is(err, domain.ErrInvalidArgument):
		return ReasonInvalidArgument
	case errors.Is(err, domain.ErrInvalidSignature):
		return ReasonInvalidSignature
	case errors.Is(err, domain.ErrNotFound):
		return ReasonSubscriptionNotFound
	case errors.Is(err, domain.ErrAlreadyExists):
		return ReasonPaymentAlreadyUsed
	default:
		return ReasonStoreUnavailable
	}
}

// IsEntitlement reports whether the user can fix r by buying or renewing a package.
func (r Reason) IsEntitlement() bool {
	switch r {
	case ReasonNoActivePackage, ReasonPackageExpired, ReasonPackageInactive:
		return true
	}
	return false
}

// IsQuota reports whether r is a cap exhaustion.
func (r Reason) IsQuota() bool {
	return r == ReasonWeeklyLimit || r == ReasonTotalLimit
}

func (r Reason) Retryable() bool {
	return r == ReasonStoreUnavailable
}

// Decision is the advisory answer of CheckCanContact. Usage numbers are filled whenever
// the package is known.
type Decision struct {
	Allowed          bool   `json:"allowed"`
	Reason           Reason `json:"reason,omitempty"`
	WeeklyUsed       int    `json:"weekly_used"`
	WeeklyLimit      int    `json:"weekly_limit"`
	TotalUsed        int    `json:"total_used"`
	TotalLimit       int    `json:"total_limit"`
	AlreadyContacted bool   `json:"already_contacted,omitempty"`
	IsExpired        bool   `json:"is_expired,omitempty"`
	Retryable        bool   `json:"retryable,omitempty"`
}

// ContactResult is the outcome of RecordContact.
type ContactResult struct {
	Success          bool   `json:"success"`
	AlreadyContacted bool   `json:"already_contacted,omitempty"`
	Error            string `json:"error,omitempty"`
	Reason           Reason `json:"-"`
	WeeklyUsed       int    `json:"weekly_used"`
	WeeklyLimit      int    `json:"weekly_limit"`
	TotalUsed        int    `json:"total_used"`
	TotalLimit       int    `json:"total_limit"`
	IsExpired        bool   `json:"is_expired,omitempty"`
	Retryable        bool   `json:"retryable,omitempty"`
}

// Result is returned by subscription management operations.
type Result struct {
	Success      bool                `json:"success"`
	Error        string              `json:"error,omitempty"`
	Reason       Reason              `json:"-"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
	// Replayed is set when a payment confirmation was already applied earlier.
	Replayed bool `json:"replayed,omitempty"`
}

func okResult(sub *model.Subscription) Result {
	return Result{Success: true, Subscription: sub}
}

func failResult(err error) Result {
	r := ReasonFor(err)
	return Result{Error: string(r), Reason: r}
}

// UsageSnapshot is the "X of Y used" view of a user's quota.
type UsageSnapshot struct {
	PackageID     string    `json:"package_id"`
	WeeklyUsed    int       `json:"weekly_used"`
	WeeklyLimit   int       `json:"weekly_limit"`
	TotalUsed     int       `json:"total_used"`
	TotalLimit    int       `json:"total_limit"`
	WeeklyResetAt time.Time `json:"weekly_reset_at"`
	ExpiryDate    time.Time `json:"expiry_date"`
	IsActive      bool      `json:"is_active"`
	IsExpired     bool      `json:"is_expired"`
}

type usage struct {
	weeklyUsed, weeklyLimit, totalUsed, totalLimit int
}

func usageOf(u *model.ContactUsage, weekly int, pkg *model.Package) usage {
	out := usage{weeklyUsed: weekly}
	if u != nil {
		out.totalUsed = u.TotalCount
	}
	if pkg != nil {
		out.weeklyLimit = pkg.WeeklyContactCap
		out.totalLimit = pkg.TotalContactCap
	}
	return out
}
