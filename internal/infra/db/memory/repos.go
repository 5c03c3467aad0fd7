package memory

import (
	"context"
	"sort"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
)

var (
	_ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)
	_ repository.ContactUsageRepository = (*ContactUsageRepo)(nil)
	_ repository.PurchaseRepository     = (*PurchaseRepo)(nil)
	_ repository.PackageRepository      = (*PackageRepo)(nil)
)

// Times are stored in UTC, the same way the real stores persist them.

func storedSubscription(sub *model.Subscription) *model.Subscription {
	cp := *sub
	cp.StartDate = cp.StartDate.UTC()
	cp.ExpiryDate = cp.ExpiryDate.UTC()
	cp.UpdatedAt = cp.UpdatedAt.UTC()
	if sub.CancelledAt != nil {
		at := sub.CancelledAt.UTC()
		cp.CancelledAt = &at
	}
	return &cp
}

func storedUsage(u *model.ContactUsage) *model.ContactUsage {
	cp := u.Clone()
	cp.WeeklyResetAt = cp.WeeklyResetAt.UTC()
	cp.UpdatedAt = cp.UpdatedAt.UTC()
	return cp
}

type SubscriptionRepo struct{ s *Store }

func NewSubscriptionRepo(s *Store) *SubscriptionRepo { return &SubscriptionRepo{s: s} }

func (r *SubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if mt != nil {
		if sub, ok := mt.subs[userID]; ok {
			return storedSubscription(sub), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sub, ok := r.s.subs[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return storedSubscription(sub), nil
}

func (r *SubscriptionRepo) Save(ctx context.Context, tx repository.Tx, sub *model.Subscription) error {
	if sub == nil || sub.UserID == "" {
		return domain.ErrInvalidArgument
	}
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if mt != nil {
		mt.subs[sub.UserID] = storedSubscription(sub)
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.subs[sub.UserID] = storedSubscription(sub)
	return nil
}

type ContactUsageRepo struct{ s *Store }

func NewContactUsageRepo(s *Store) *ContactUsageRepo { return &ContactUsageRepo{s: s} }

func (r *ContactUsageRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ContactUsage, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	if mt != nil {
		if u, ok := mt.usage[userID]; ok {
			return storedUsage(u), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.usage[userID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return storedUsage(u), nil
}

func (r *ContactUsageRepo) Save(ctx context.Context, tx repository.Tx, u *model.ContactUsage) error {
	if u == nil || u.UserID == "" {
		return domain.ErrInvalidArgument
	}
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if mt != nil {
		mt.usage[u.UserID] = storedUsage(u)
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.usage[u.UserID] = storedUsage(u)
	return nil
}

type PurchaseRepo struct{ s *Store }

func NewPurchaseRepo(s *Store) *PurchaseRepo { return &PurchaseRepo{s: s} }

func (r *PurchaseRepo) Append(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidArgument
	}
	cp := *p
	cp.StartDate, cp.ExpiryDate, cp.CreatedAt = p.StartDate.UTC(), p.ExpiryDate.UTC(), p.CreatedAt.UTC()

	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if mt != nil {
		r.s.mu.RLock()
		dup := hasPayment(r.s.purchases, cp.PaymentID)
		r.s.mu.RUnlock()
		if dup || hasPayment(mt.purchases, cp.PaymentID) {
			return domain.ErrAlreadyExists
		}
		mt.purchases = append(mt.purchases, &cp)
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if hasPayment(r.s.purchases, cp.PaymentID) {
		return domain.ErrAlreadyExists
	}
	r.s.purchases = append(r.s.purchases, &cp)
	return nil
}

// hasPayment mirrors the unique payment id index of the postgres store. Empty ids never clash.
func hasPayment(ps []*model.Purchase, paymentID string) bool {
	if paymentID == "" {
		return false
	}
	for _, p := range ps {
		if p.PaymentID == paymentID {
			return true
		}
	}
	return false
}

func matches(p *model.Purchase, f model.PurchaseFilter) bool {
	switch {
	case f.UserID != "" && p.UserID != f.UserID:
		return false
	case f.PackageID != "" && p.PackageID != f.PackageID:
		return false
	case f.PaymentID != "" && p.PaymentID != f.PaymentID:
		return false
	case !f.Since.IsZero() && p.CreatedAt.Before(f.Since):
		return false
	}
	return true
}

// List returns matching purchases newest first, staged ones included.
func (r *PurchaseRepo) List(ctx context.Context, tx repository.Tx, f model.PurchaseFilter) ([]*model.Purchase, error) {
	mt, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	all := append([]*model.Purchase(nil), r.s.purchases...)
	r.s.mu.RUnlock()
	if mt != nil {
		all = append(all, mt.purchases...)
	}

	var out []*model.Purchase
	for i := len(all) - 1; i >= 0; i-- {
		if matches(all[i], f) {
			cp := *all[i]
			out = append(out, &cp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type PackageRepo struct{ s *Store }

func NewPackageRepo(s *Store) *PackageRepo { return &PackageRepo{s: s} }

func (r *PackageRepo) Save(ctx context.Context, tx repository.Tx, pkg *model.Package) error {
	if pkg.IsZero() {
		return domain.ErrInvalidArgument
	}
	cp := *pkg
	mt, err := asTx(tx)
	if err != nil {
		return err
	}
	if mt != nil {
		mt.packages[pkg.ID] = &cp
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.packages[pkg.ID] = &cp
	return nil
}

func (r *PackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.packages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *PackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	if _, err := asTx(tx); err != nil {
		return nil, err
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]*model.Package, 0, len(r.s.packages))
	for _, p := range r.s.packages {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
