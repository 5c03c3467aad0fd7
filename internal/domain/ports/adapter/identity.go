package adapter

import (
	"context"

	"matrimony-subscription/internal/domain/model"
)

// IdentityVerifier turns a bearer credential into a stable principal.
// It returns domain.ErrUnauthenticated for anything it cannot vouch for.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (*model.Principal, error)
}
