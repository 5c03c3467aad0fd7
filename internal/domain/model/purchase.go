package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

type PurchaseSource string

const (
	PurchaseSourcePayment PurchaseSource = "payment"
	PurchaseSourceAdmin   PurchaseSource = "admin"
)

// Purchase is the append-only audit trail of activations. Records are never mutated.
type Purchase struct {
	ID         string          `json:"id"` // ULID, sortable by creation time
	UserID     string          `json:"user_id"`
	PackageID  string          `json:"package_id"`
	Price      decimal.Decimal `json:"price"`
	Currency   string          `json:"currency"`
	Source     PurchaseSource  `json:"source"`
	PaymentID  string          `json:"payment_id,omitempty"`
	OrderID    string          `json:"order_id,omitempty"`
	StartDate  time.Time       `json:"start_date"`
	ExpiryDate time.Time       `json:"expiry_date"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewPurchase records an activation of pkg for sub.
func NewPurchase(sub *Subscription, pkg *Package, source PurchaseSource, paymentID, orderID string, now time.Time) *Purchase {
	return &Purchase{
		ID:         ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		UserID:     sub.UserID,
		PackageID:  pkg.ID,
		Price:      pkg.Price,
		Currency:   pkg.Currency,
		Source:     source,
		PaymentID:  paymentID,
		OrderID:    orderID,
		StartDate:  sub.StartDate,
		ExpiryDate: sub.ExpiryDate,
		CreatedAt:  now,
	}
}

// PurchaseFilter narrows purchase-history listings. Zero values mean "any".
type PurchaseFilter struct {
	UserID    string
	PackageID string
	PaymentID string
	Since     time.Time
	Limit     int
}
