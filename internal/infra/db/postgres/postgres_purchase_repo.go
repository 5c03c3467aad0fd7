package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*PurchaseRepo)(nil)

// PurchaseRepo is append-only; there is no update or delete path.
type PurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) Append(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	if p == nil || p.ID == "" {
		return domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const sql = `
INSERT INTO purchase_history
  (id, user_id, package_id, price, currency, source, payment_id, order_id, start_date, expiry_date, created_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7, $8, $9, $10, $11);
`
	if _, err := exec.Exec(ctx, sql,
		p.ID, p.UserID, p.PackageID, p.Price.String(), p.Currency, string(p.Source),
		p.PaymentID, p.OrderID, p.StartDate.UTC(), p.ExpiryDate.UTC(), p.CreatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("append purchase: %w", classify(err))
	}
	return nil
}

// listQuery builds the filtered history query, newest first.
func listQuery(f model.PurchaseFilter) (string, []interface{}, error) {
	q := squirrel.Select(
		"id", "user_id", "package_id", "price::text", "currency", "source",
		"payment_id", "order_id", "start_date", "expiry_date", "created_at",
	).From("purchase_history").PlaceholderFormat(squirrel.Dollar)

	if f.UserID != "" {
		q = q.Where(squirrel.Eq{"user_id": f.UserID})
	}
	if f.PackageID != "" {
		q = q.Where(squirrel.Eq{"package_id": f.PackageID})
	}
	if f.PaymentID != "" {
		q = q.Where(squirrel.Eq{"payment_id": f.PaymentID})
	}
	if !f.Since.IsZero() {
		q = q.Where(squirrel.GtOrEq{"created_at": f.Since.UTC()})
	}
	q = q.OrderBy("created_at DESC", "id DESC")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit))
	}
	return q.ToSql()
}

func (r *PurchaseRepo) List(ctx context.Context, tx repository.Tx, f model.PurchaseFilter) ([]*model.Purchase, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	sql, args, err := listQuery(f)
	if err != nil {
		return nil, fmt.Errorf("build purchase query: %w", err)
	}
	rows, err := exec.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", classify(err))
	}
	defer rows.Close()

	var out []*model.Purchase
	for rows.Next() {
		var (
			p      model.Purchase
			price  string
			source string
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.PackageID, &price, &p.Currency, &source,
			&p.PaymentID, &p.OrderID, &p.StartDate, &p.ExpiryDate, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		if p.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("%w: price %q: %v", domain.ErrReadDatabaseRow, price, err)
		}
		p.Source = model.PurchaseSource(source)
		p.StartDate, p.ExpiryDate, p.CreatedAt = p.StartDate.UTC(), p.ExpiryDate.UTC(), p.CreatedAt.UTC()
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list purchases: %w", classify(err))
	}
	return out, nil
}
