package model

import (
	"time"

	"matrimony-subscription/internal/domain"
)

// Subscription is a user's entitlement to one package. A user holds at most one;
// activation replaces it instead of deleting it.
type Subscription struct {
	UserID      string     `json:"user_id"`
	PackageID   string     `json:"package_id"`
	StartDate   time.Time  `json:"start_date"`
	ExpiryDate  time.Time  `json:"expiry_date"`
	IsActive    bool       `json:"is_active"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewSubscription starts a subscription at now lasting months calendar months.
func NewSubscription(userID, packageID string, now time.Time, months int) (*Subscription, error) {
	if userID == "" || packageID == "" || months <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Subscription{
		UserID:     userID,
		PackageID:  packageID,
		StartDate:  now,
		ExpiryDate: AddMonths(now, months),
		IsActive:   true,
		UpdatedAt:  now,
	}, nil
}

// IsExpired reports whether the subscription is past its expiry at now.
// The expiry instant itself counts as expired.
func (s *Subscription) IsExpired(now time.Time) bool {
	return !s.ExpiryDate.After(now)
}

// Extend pushes the expiry forward from the current expiry, never from now,
// and reactivates the subscription.
func (s *Subscription) Extend(months int, now time.Time) error {
	if months <= 0 {
		return domain.ErrInvalidArgument
	}
	s.ExpiryDate = AddMonths(s.ExpiryDate, months)
	s.IsActive = true
	s.CancelledAt = nil
	s.UpdatedAt = now
	return nil
}

func (s *Subscription) Deactivate(now time.Time) {
	s.IsActive = false
	s.UpdatedAt = now
}

// AddMonths adds n calendar months in t's location. Day-of-month overflow normalises
// forward, so Jan 31 + 1 month lands on Mar 2 (leap year) or Mar 3.
func AddMonths(t time.Time, n int) time.Time {
	return t.AddDate(0, n, 0)
}
