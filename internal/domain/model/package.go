package model

import (
	"strings"

	"github.com/shopspring/decimal"

	"matrimony-subscription/internal/domain"
)

// Package is an immutable catalog entry: how long a purchase stays valid and how many
// distinct profiles its holder may contact per week and in total.
type Package struct {
	ID               string          `json:"id"`
	Name             string          `json:"name"`
	ValidityMonths   int             `json:"validity_months"`
	WeeklyContactCap int             `json:"weekly_contact_cap"`
	TotalContactCap  int             `json:"total_contact_cap"`
	Price            decimal.Decimal `json:"price"`
	Currency         string          `json:"currency"`
}

func (p *Package) IsZero() bool { return p == nil || p.ID == "" }

// NewPackage validates and constructs a catalog entry.
func NewPackage(id, name string, validityMonths, weeklyCap, totalCap int, price decimal.Decimal, currency string) (*Package, error) {
	id = strings.TrimSpace(id)
	if id == "" || validityMonths <= 0 || weeklyCap < 0 || totalCap < 0 || price.IsNegative() {
		return nil, domain.ErrInvalidArgument
	}
	if name == "" {
		name = id
	}
	if currency == "" {
		currency = "INR"
	}
	return &Package{
		ID:               id,
		Name:             name,
		ValidityMonths:   validityMonths,
		WeeklyContactCap: weeklyCap,
		TotalContactCap:  totalCap,
		Price:            price,
		Currency:         strings.ToUpper(currency),
	}, nil
}

// Equal compares every entitlement-relevant field.
func (p *Package) Equal(o *Package) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.ID == o.ID &&
		p.Name == o.Name &&
		p.ValidityMonths == o.ValidityMonths &&
		p.WeeklyContactCap == o.WeeklyContactCap &&
		p.TotalContactCap == o.TotalContactCap &&
		p.Price.Equal(o.Price) &&
		p.Currency == o.Currency
}

// DefaultPackages is the in-code catalog used when the config does not declare one.
func DefaultPackages() []*Package {
	return []*Package{
		{ID: "silver", Name: "Silver", ValidityMonths: 3, WeeklyContactCap: 5, TotalContactCap: 50, Price: decimal.NewFromInt(2999), Currency: "INR"},
		{ID: "gold", Name: "Gold", ValidityMonths: 6, WeeklyContactCap: 8, TotalContactCap: 100, Price: decimal.NewFromInt(4999), Currency: "INR"},
		{ID: "platinum", Name: "Platinum", ValidityMonths: 12, WeeklyContactCap: 12, TotalContactCap: 180, Price: decimal.NewFromInt(7999), Currency: "INR"},
	}
}
