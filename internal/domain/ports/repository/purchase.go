package repository

import (
	"context"

	"matrimony-subscription/internal/domain/model"
)

// PurchaseRepository is the append-only purchase history.
type PurchaseRepository interface {
	Append(ctx context.Context, tx Tx, p *model.Purchase) error
	List(ctx context.Context, tx Tx, filter model.PurchaseFilter) ([]*model.Purchase, error)
}
