package model

import (
	"time"

	"matrimony-subscription/internal/domain"
)

// ContactUsage is the per-user contact counter. Invariant:
// len(ContactedProfileIDs) == TotalCount, and each profile appears once.
type ContactUsage struct {
	UserID              string
	WeeklyCount         int
	WeeklyResetAt       time.Time
	TotalCount          int
	ContactedProfileIDs []string
	UpdatedAt           time.Time
}

// NewContactUsage returns zeroed counters whose first reset is the next weekly boundary after now.
func NewContactUsage(userID string, now time.Time, loc *time.Location) *ContactUsage {
	return &ContactUsage{
		UserID:              userID,
		WeeklyResetAt:       NextWeeklyBoundary(now, loc),
		ContactedProfileIDs: []string{},
		UpdatedAt:           now,
	}
}

func (u *ContactUsage) HasContacted(profileID string) bool {
	for _, id := range u.ContactedProfileIDs {
		if id == profileID {
			return true
		}
	}
	return false
}

// ResetDue reports whether now has reached the weekly reset instant.
func (u *ContactUsage) ResetDue(now time.Time) bool {
	return !now.Before(u.WeeklyResetAt)
}

// EffectiveWeeklyCount is the weekly count as it would read after a due reset.
func (u *ContactUsage) EffectiveWeeklyCount(now time.Time) int {
	if u.ResetDue(now) {
		return 0
	}
	return u.WeeklyCount
}

// ApplyWeeklyReset zeroes the weekly counter and advances the boundary when due.
func (u *ContactUsage) ApplyWeeklyReset(now time.Time, loc *time.Location) bool {
	if !u.ResetDue(now) {
		return false
	}
	u.WeeklyCount = 0
	u.WeeklyResetAt = NextWeeklyBoundary(now, loc)
	return true
}

// CheckCaps returns the quota error that would block one more contact, if any.
// Weekly is checked first so the caller sees the nearer limit.
func (u *ContactUsage) CheckCaps(weeklyCount int, pkg *Package) error {
	if weeklyCount >= pkg.WeeklyContactCap {
		return domain.ErrWeeklyLimitReached
	}
	if u.TotalCount >= pkg.TotalContactCap {
		return domain.ErrTotalLimitReached
	}
	return nil
}

// Record counts profileID once. Re-recording a known profile is a no-op and returns false.
func (u *ContactUsage) Record(profileID string, now time.Time) bool {
	if u.HasContacted(profileID) {
		return false
	}
	u.ContactedProfileIDs = append(u.ContactedProfileIDs, profileID)
	u.WeeklyCount++
	u.TotalCount++
	u.UpdatedAt = now
	return true
}

func (u *ContactUsage) Clone() *ContactUsage {
	if u == nil {
		return nil
	}
	cp := *u
	cp.ContactedProfileIDs = append([]string(nil), u.ContactedProfileIDs...)
	return &cp
}
