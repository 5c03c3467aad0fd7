package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
)

// Ensure interface compliance
var _ repository.PackageRepository = (*PackageRepo)(nil)

// PackageRepo is the catalog mirror written by catalog sync.
type PackageRepo struct {
	pool *pgxpool.Pool
}

func NewPackageRepo(pool *pgxpool.Pool) *PackageRepo {
	return &PackageRepo{pool: pool}
}

func (r *PackageRepo) Save(ctx context.Context, tx repository.Tx, p *model.Package) error {
	if p.IsZero() {
		return domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const sql = `
INSERT INTO packages (id, name, validity_months, weekly_contact_cap, total_contact_cap, price, currency, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8)
ON CONFLICT (id) DO UPDATE
  SET name               = EXCLUDED.name,
      validity_months    = EXCLUDED.validity_months,
      weekly_contact_cap = EXCLUDED.weekly_contact_cap,
      total_contact_cap  = EXCLUDED.total_contact_cap,
      price              = EXCLUDED.price,
      currency           = EXCLUDED.currency,
      updated_at         = EXCLUDED.updated_at;
`
	if _, err := exec.Exec(ctx, sql,
		p.ID, p.Name, p.ValidityMonths, p.WeeklyContactCap, p.TotalContactCap, p.Price.String(), p.Currency, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("save package %s: %w", p.ID, classify(err))
	}
	return nil
}

const selectPackage = `
SELECT id, name, validity_months, weekly_contact_cap, total_contact_cap, price::text, currency
  FROM packages`

func scanPackage(row pgx.Row) (*model.Package, error) {
	var (
		p     model.Package
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.ValidityMonths, &p.WeeklyContactCap, &p.TotalContactCap, &price, &p.Currency); err != nil {
		return nil, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("%w: price %q: %v", domain.ErrReadDatabaseRow, price, err)
	}
	p.Price = d
	return &p, nil
}

func (r *PackageRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Package, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	p, err := scanPackage(exec.QueryRow(ctx, selectPackage+` WHERE id = $1`, id))
	if err != nil {
		return nil, wrapNotFound("find package", err)
	}
	return p, nil
}

func (r *PackageRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Package, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := exec.Query(ctx, selectPackage+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list packages: %w", classify(err))
	}
	defer rows.Close()
	var out []*model.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrReadDatabaseRow, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list packages: %w", classify(err))
	}
	return out, nil
}
