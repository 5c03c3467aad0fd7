package repository

import (
	"context"

	"matrimony-subscription/internal/domain/model"
)

// ContactUsageRepository is the port for the per-user contact counter document.
type ContactUsageRepository interface {
	// FindByUser returns domain.ErrNotFound when no counter exists yet.
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.ContactUsage, error)
	Save(ctx context.Context, tx Tx, usage *model.ContactUsage) error
}
