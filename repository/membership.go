package repository

import (
	"context"
	"time"

	"github.com/wafflestudio/waffice/domain"
)

// MembershipRepository stores membership intervals. Rows are never deleted;
// End closes an active row.
type MembershipRepository interface {
	GetActive(ctx context.Context, projectID, userID string) (*domain.Membership, error)
	ListActive(ctx context.Context, projectID string) ([]domain.Membership, error)
	ListActiveWithUsers(ctx context.Context, projectID string) ([]domain.ProjectMember, error)
	CountLeaders(ctx context.Context, projectID string) (int, error)
	// LockActiveLeaders returns the project's active leader rows and holds
	// row locks on them until the enclosing transaction ends.
	LockActiveLeaders(ctx context.Context, projectID string) ([]domain.Membership, error)
	// History returns every row for the pair ordered by joined date, then
	// creation time.
	History(ctx context.Context, projectID, userID string) ([]domain.Membership, error)
	Create(ctx context.Context, membership *domain.Membership) error
	End(ctx context.Context, id string, leftAt time.Time) error
}
