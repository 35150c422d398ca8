package repository

import (
	"context"

	"github.com/wafflestudio/waffice/domain"
)

// IdentityCache keeps resolved principals close to the request path.
type IdentityCache interface {
	Get(ctx context.Context, userID string) (*domain.Principal, error)
	Save(ctx context.Context, principal domain.Principal) error
	Invalidate(ctx context.Context, userID string) error
}
