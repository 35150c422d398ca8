package repository

import (
	"context"
	"time"

	"github.com/wafflestudio/waffice/domain"
)

// UserFilter narrows user listings. Before is an exclusive creation-time
// cursor; results are ordered newest first.
type UserFilter struct {
	Qualification domain.Qualification
	Before        *time.Time
	Limit         int
}

// UserRepository reads and writes users. Soft-deleted users are invisible to
// every method except SoftDelete's own bookkeeping.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context, filter UserFilter) ([]domain.User, error)
	// Create assigns ID when empty and a creation time strictly greater than
	// any previously stored user.
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
