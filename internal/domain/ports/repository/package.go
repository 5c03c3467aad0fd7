package repository

import (
	"context"

	"matrimony-subscription/internal/domain/model"
)

// PackageRepository is the store-side mirror of the in-code catalog. Only catalog sync
// writes it; entitlement checks never read it.
type PackageRepository interface {
	Save(ctx context.Context, tx Tx, pkg *model.Package) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Package, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.Package, error)
}
