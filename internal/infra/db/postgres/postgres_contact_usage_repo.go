package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"matrimony-subscription/internal/domain"
	"matrimony-subscription/internal/domain/model"
	"matrimony-subscription/internal/domain/ports/repository"
)

var _ repository.ContactUsageRepository = (*ContactUsageRepo)(nil)

// ContactUsageRepo keeps the contacted profile set as a TEXT[] column on the counter row,
// so the set and the counters are always written together.
type ContactUsageRepo struct {
	pool *pgxpool.Pool
}

func NewContactUsageRepo(pool *pgxpool.Pool) *ContactUsageRepo {
	return &ContactUsageRepo{pool: pool}
}

func (r *ContactUsageRepo) FindByUser(ctx context.Context, tx repository.Tx, userID string) (*model.ContactUsage, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	sql := `
SELECT user_id, weekly_count, weekly_reset_at, total_count, contacted_profile_ids, updated_at
  FROM contact_usage
 WHERE user_id = $1` + lockClause(tx)

	var u model.ContactUsage
	err = exec.QueryRow(ctx, sql, userID).Scan(
		&u.UserID, &u.WeeklyCount, &u.WeeklyResetAt, &u.TotalCount, &u.ContactedProfileIDs, &u.UpdatedAt,
	)
	if err != nil {
		return nil, wrapNotFound("find contact usage", err)
	}
	if u.ContactedProfileIDs == nil {
		u.ContactedProfileIDs = []string{}
	}
	u.WeeklyResetAt, u.UpdatedAt = u.WeeklyResetAt.UTC(), u.UpdatedAt.UTC()
	return &u, nil
}

func (r *ContactUsageRepo) Save(ctx context.Context, tx repository.Tx, u *model.ContactUsage) error {
	if u == nil || u.UserID == "" {
		return domain.ErrInvalidArgument
	}
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	ids := u.ContactedProfileIDs
	if ids == nil {
		ids = []string{}
	}
	const sql = `
INSERT INTO contact_usage (user_id, weekly_count, weekly_reset_at, total_count, contacted_profile_ids, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (user_id) DO UPDATE
  SET weekly_count          = EXCLUDED.weekly_count,
      weekly_reset_at       = EXCLUDED.weekly_reset_at,
      total_count           = EXCLUDED.total_count,
      contacted_profile_ids = EXCLUDED.contacted_profile_ids,
      updated_at            = EXCLUDED.updated_at;
`
	if _, err := exec.Exec(ctx, sql,
		u.UserID, u.WeeklyCount, u.WeeklyResetAt.UTC(), u.TotalCount, ids, u.UpdatedAt.UTC(),
	); err != nil {
		return fmt.Errorf("save contact usage: %w", classify(err))
	}
	return nil
}
