package firestore

import (
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"matrimony-subscription/internal/domain/model"
)

// Document shapes keep camelCase field names; prices are decimal strings.

type subscriptionDoc struct {
	UserID      string     `firestore:"userId"`
	PackageID   string     `firestore:"packageId"`
	StartDate   time.Time  `firestore:"startDate"`
	ExpiryDate  time.Time  `firestore:"expiryDate"`
	IsActive    bool       `firestore:"isActive"`
	CancelledAt *time.Time `firestore:"cancelledAt"`
	UpdatedAt   time.Time  `firestore:"updatedAt"`
}

func toSubscriptionDoc(s *model.Subscription) subscriptionDoc {
	d := subscriptionDoc{
		UserID:     s.UserID,
		PackageID:  s.PackageID,
		StartDate:  s.StartDate.UTC(),
		ExpiryDate: s.ExpiryDate.UTC(),
		IsActive:   s.IsActive,
		UpdatedAt:  s.UpdatedAt.UTC(),
	}
	if s.CancelledAt != nil {
		at := s.CancelledAt.UTC()
		d.CancelledAt = &at
	}
	return d
}

func (d subscriptionDoc) model() *model.Subscription {
	s := &model.Subscription{
		UserID:     d.UserID,
		PackageID:  d.PackageID,
		StartDate:  d.StartDate.UTC(),
		ExpiryDate: d.ExpiryDate.UTC(),
		IsActive:   d.IsActive,
		UpdatedAt:  d.UpdatedAt.UTC(),
	}
	if d.CancelledAt != nil {
		at := d.CancelledAt.UTC()
		s.CancelledAt = &at
	}
	return s
}

type contactUsageDoc struct {
	UserID              string    `firestore:"userId"`
	WeeklyCount         int       `firestore:"weeklyCount"`
	WeeklyResetAt       time.Time `firestore:"weeklyResetAt"`
	TotalCount          int       `firestore:"totalCount"`
	ContactedProfileIDs []string  `firestore:"contactedProfileIds"`
	UpdatedAt           time.Time `firestore:"updatedAt"`
}

func toContactUsageDoc(u *model.ContactUsage) contactUsageDoc {
	ids := u.ContactedProfileIDs
	if ids == nil {
		ids = []string{}
	}
	return contactUsageDoc{
		UserID:              u.UserID,
		WeeklyCount:         u.WeeklyCount,
		WeeklyResetAt:       u.WeeklyResetAt.UTC(),
		TotalCount:          u.TotalCount,
		ContactedProfileIDs: ids,
		UpdatedAt:           u.UpdatedAt.UTC(),
	}
}

func (d contactUsageDoc) model() *model.ContactUsage {
	ids := append([]string{}, d.ContactedProfileIDs...)
	return &model.ContactUsage{
		UserID:              d.UserID,
		WeeklyCount:         d.WeeklyCount,
		WeeklyResetAt:       d.WeeklyResetAt.UTC(),
		TotalCount:          d.TotalCount,
		ContactedProfileIDs: ids,
		UpdatedAt:           d.UpdatedAt.UTC(),
	}
}

type purchaseDoc struct {
	UserID     string    `firestore:"userId"`
	PackageID  string    `firestore:"packageId"`
	Price      string    `firestore:"price"`
	Currency   string    `firestore:"currency"`
	Source     string    `firestore:"source"`
	PaymentID  string    `firestore:"paymentId"`
	OrderID    string    `firestore:"orderId"`
	StartDate  time.Time `firestore:"startDate"`
	ExpiryDate time.Time `firestore:"expiryDate"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// paymentDoc claims a gateway payment id for exactly one purchase.
type paymentDoc struct {
	PaymentID  string    `firestore:"paymentId"`
	UserID     string    `firestore:"userId"`
	PurchaseID string    `firestore:"purchaseId"`
	CreatedAt  time.Time `firestore:"createdAt"`
}

// paymentDocID escapes a gateway id into a valid document id. The prefix keeps ids
// clear of "." and "..", and of the reserved __name__ form.
func paymentDocID(paymentID string) string {
	return "p_" + url.PathEscape(paymentID)
}

func toPurchaseDoc(p *model.Purchase) purchaseDoc {
	return purchaseDoc{
		UserID:     p.UserID,
		PackageID:  p.PackageID,
		Price:      p.Price.String(),
		Currency:   p.Currency,
		Source:     string(p.Source),
		PaymentID:  p.PaymentID,
		OrderID:    p.OrderID,
		StartDate:  p.StartDate.UTC(),
		ExpiryDate: p.ExpiryDate.UTC(),
		CreatedAt:  p.CreatedAt.UTC(),
	}
}

func (d purchaseDoc) model(id string) (*model.Purchase, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return nil, fmt.Errorf("purchase %s price %q: %w", id, d.Price, err)
	}
	return &model.Purchase{
		ID:         id,
		UserID:     d.UserID,
		PackageID:  d.PackageID,
		Price:      price,
		Currency:   d.Currency,
		Source:     model.PurchaseSource(d.Source),
		PaymentID:  d.PaymentID,
		OrderID:    d.OrderID,
		StartDate:  d.StartDate.UTC(),
		ExpiryDate: d.ExpiryDate.UTC(),
		CreatedAt:  d.CreatedAt.UTC(),
	}, nil
}

type packageDoc struct {
	Name             string    `firestore:"name"`
	ValidityMonths   int       `firestore:"validityMonths"`
	WeeklyContactCap int       `firestore:"weeklyContactCap"`
	TotalContactCap  int       `firestore:"totalContactCap"`
	Price            string    `firestore:"price"`
	Currency         string    `firestore:"currency"`
	UpdatedAt        time.Time `firestore:"updatedAt"`
}

func toPackageDoc(p *model.Package, now time.Time) packageDoc {
	return packageDoc{
		Name:             p.Name,
		ValidityMonths:   p.ValidityMonths,
		WeeklyContactCap: p.WeeklyContactCap,
		TotalContactCap:  p.TotalContactCap,
		Price:            p.Price.String(),
		Currency:         p.Currency,
		UpdatedAt:        now.UTC(),
	}
}

func (d packageDoc) model(id string) (*model.Package, error) {
	price, err := decimal.NewFromString(d.Price)
	if err != nil {
		return nil, fmt.Errorf("package %s price %q: %w", id, d.Price, err)
	}
	return &model.Package{
		ID:               id,
		Name:             d.Name,
		ValidityMonths:   d.ValidityMonths,
		WeeklyContactCap: d.WeeklyContactCap,
		TotalContactCap:  d.TotalContactCap,
		Price:            price,
		Currency:         d.Currency,
	}, nil
}
