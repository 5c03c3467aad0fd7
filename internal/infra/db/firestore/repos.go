package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

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

// SubscriptionRepo stores subscriptions/{userID}.
type SubscriptionRepo struct {
	cli *firestore.Client
}

func NewSubscriptionRepo(cli *firestore.Client) *SubscriptionRepo {
	return &SubscriptionRepo{cli: cli}
}

func (r *SubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	ftx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	snap, err := getDoc(ctx, ftx, r.cli.Collection(colSubscriptions).Doc(userID))
	if err != nil {
		return nil, err
	}
	var d subscriptionDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("%w: decode subscription %s: %v", domain.ErrReadDatabaseRow, userID, err)
	}
	d.UserID = userID
	return d.model(), nil
}

func (r *SubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if s == nil || s.UserID == "" {
		return domain.ErrInvalidArgument
	}
	ftx, err := asTx(tx)
	if err != nil {
		return err
	}
	return setDoc(ctx, ftx, r.cli.Collection(colSubscriptions).Doc(s.UserID), toSubscriptionDoc(s))
}

// ContactUsageRepo stores contactUsage/{userID}; the contacted set lives on the same document.
type ContactUsageRepo struct {
	cli *firestore.Client
}

func NewContactUsageRepo(cli *firestore.Client) *ContactUsageRepo {
	return &ContactUsageRepo{cli: cli}
}

func (r *ContactUsageRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ContactUsage, error) {
	ftx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	snap, err := getDoc(ctx, ftx, r.cli.Collection(colContactUsage).Doc(userID))
	if err != nil {
		return nil, err
	}
	var d contactUsageDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("%w: decode contact usage %s: %v", domain.ErrReadDatabaseRow, userID, err)
	}
	d.UserID = userID
	return d.model(), nil
}

func (r *ContactUsageRepo) Save(ctx context.Context, tx repository.Tx, u *model.ContactUsage) error {
	if u == nil || u.UserID == "" {
		return domain.ErrInvalidArgument
	}
	ftx, err := asTx(tx)
	if err != nil {
		return err
	}
	return setDoc(ctx, ftx, r.cli.Collection(colContactUsage).Doc(u.UserID), toContactUsageDoc(u))
}

// PurchaseRepo stores purchaseHistory/{ulid}. Create refuses to overwrite an id. A
// purchase carrying a payment id also creates payments/{id}, so a payment can back
// only one purchase even across users.
type PurchaseRepo struct {
	cli *firestore.Client
}

func NewPurchaseRepo(cli *firestore.Client) *PurchaseRepo {
	return &PurchaseRepo{cli: cli}
}

func (r *PurchaseRepo) Append(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidArgument
	}
	ftx, err := asTx(tx)
	if err != nil {
		return err
	}
	if p.PaymentID != "" {
		claim := paymentDoc{PaymentID: p.PaymentID, UserID: p.UserID, PurchaseID: p.ID, CreatedAt: p.CreatedAt.UTC()}
		if err := createDoc(ctx, ftx, r.cli.Collection(colPayments).Doc(paymentDocID(p.PaymentID)), claim); err != nil {
			return fmt.Errorf("claim payment %s: %w", p.PaymentID, err)
		}
	}
	if err := createDoc(ctx, ftx, r.cli.Collection(colPurchaseHistory).Doc(p.ID), toPurchaseDoc(p)); err != nil {
		return fmt.Errorf("append purchase: %w", err)
	}
	return nil
}

// purchaseQuery applies f to the history collection. Equality filters combined with the
// createdAt ordering need a composite index per filter set.
func purchaseQuery(col *firestore.CollectionRef, f model.PurchaseFilter) firestore.Query {
	q := col.Query
	if f.UserID != "" {
		q = q.Where("userId", "==", f.UserID)
	}
	if f.PackageID != "" {
		q = q.Where("packageId", "==", f.PackageID)
	}
	if f.PaymentID != "" {
		q = q.Where("paymentId", "==", f.PaymentID)
	}
	if !f.Since.IsZero() {
		q = q.Where("createdAt", ">=", f.Since.UTC())
	}
	q = q.OrderBy("createdAt", firestore.Desc)
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	return q
}

func (r *PurchaseRepo) List(ctx context.Context, tx repository.Tx, f model.PurchaseFilter) ([]*model.Purchase, error) {
	ftx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	it := documents(ctx, ftx, purchaseQuery(r.cli.Collection(colPurchaseHistory), f))
	defer it.Stop()

	var out []*model.Purchase
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list purchases: %w", classify(err))
		}
		var d purchaseDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("%w: decode purchase %s: %v", domain.ErrReadDatabaseRow, snap.Ref.ID, err)
		}
		p, err := d.model(snap.Ref.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, p)
	}
	// ULIDs break createdAt ties the same way the postgres store does.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// PackageRepo stores the catalog mirror under packages/{id}.
type PackageRepo struct {
	cli *firestore.Client
	now func() time.Time
}

func NewPackageRepo(cli *firestore.Client) *PackageRepo {
	return &PackageRepo{cli: cli, now: time.Now}
}

func (r *PackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	if p.IsZero() {
		return domain.ErrInvalidArgument
	}
	ftx, err := asTx(tx)
	if err != nil {
		return err
	}
	if err := setDoc(ctx, ftx, r.cli.Collection(colPackages).Doc(p.ID), toPackageDoc(p, r.now())); err != nil {
		return fmt.Errorf("save package %s: %w", p.ID, err)
	}
	return nil
}

func (r *PackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	ftx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	snap, err := getDoc(ctx, ftx, r.cli.Collection(colPackages).Doc(id))
	if err != nil {
		return nil, err
	}
	var d packageDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, fmt.Errorf("%w: decode package %s: %v", domain.ErrReadDatabaseRow, id, err)
	}
	return d.model(id)
}

func (r *PackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	ftx, err := asTx(tx)
	if err != nil {
		return nil, err
	}
	it := documents(ctx, ftx, r.cli.Collection(colPackages).OrderBy(firestore.DocumentID, firestore.Asc))
	defer it.Stop()

	var out []*model.Package
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list packages: %w", classify(err))
		}
		var d packageDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("%w: decode package %s: %v", domain.ErrReadDatabaseRow, snap.Ref.ID, err)
		}
		p, err := d.model(snap.Ref.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
