package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
)

var _ repository.SubscriptionRepository = (*SubscriptionRepo)(nil)

type SubscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *SubscriptionRepo {
	return &SubscriptionRepo{pool: pool}
}

func (r *SubscriptionRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.Subscription, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	sql := `
SELECT user_id, package_id, start_date, expiry_date, is_active, cancelled_at, updated_at
  FROM subscriptions
 WHERE user_id = $1` + lockClause(tx)

	var s model.Subscription
	err = exec.QueryRow(ctx, sql, userID).Scan(
		&s.UserID, &s.PackageID, &s.StartDate, &s.ExpiryDate, &s.IsActive, &s.CancelledAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNotFound("find subscription", err)
	}
	s.StartDate, s.ExpiryDate, s.UpdatedAt = s.StartDate.UTC(), s.ExpiryDate.UTC(), s.UpdatedAt.UTC()
	if s.CancelledAt != nil {
		at := s.CancelledAt.UTC()
		s.CancelledAt = &at
	}
	return &s, nil
}

func (r *SubscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if s == nil || s.UserID == "" {
		return domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const sql = `
INSERT INTO subscriptions (user_id, package_id, start_date, expiry_date, is_active, cancelled_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id) DO UPDATE
  SET package_id   = EXCLUDED.package_id,
      start_date   = EXCLUDED.start_date,
      expiry_date  = EXCLUDED.expiry_date,
      is_active    = EXCLUDED.is_active,
      cancelled_at = EXCLUDED.cancelled_at,
      updated_at   = EXCLUDED.updated_at;
`
	var cancelled interface{}
	if s.CancelledAt != nil {
		cancelled = s.CancelledAt.UTC()
	}
	if _, err := exec.Exec(ctx, sql,
		s.UserID, s.PackageID, s.StartDate.UTC(), s.ExpiryDate.UTC(), s.IsActive, cancelled, s.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("save subscription: %w", classify(err))
	}
	return nil
}

// wrapNotFound keeps ErrNotFound bare so callers can compare it directly.
func wrapNotFound(op string, err error) error {
	c := classify(err)
	if c == domain.ErrNotFound {
		return c
	}
	return fmt.Errorf("%s: %w", op, c)
}
