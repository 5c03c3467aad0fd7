package repository

import (
	"context"

	"matrimony-subscription/internal/domain/model"
)

// SubscriptionRepository is the port for the single per-user subscription document.
type SubscriptionRepository interface {
	// FindByUser returns domain.ErrNotFound when the user never subscribed.
	FindByUser(ctx context.Context, tx Tx, userID string) (*model.Subscription, error)
	Save(ctx context.Context, tx Tx, sub *model.Subscription) error
}
