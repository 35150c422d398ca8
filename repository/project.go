package repository

import (
	"context"
	"time"

	"github.com/wafflestudio/waffice/domain"
)

// ProjectFilter narrows project listings. Before is an exclusive creation-time
// cursor; results are ordered newest first.
type ProjectFilter struct {
	Status domain.ProjectStatus
	Before *time.Time
	Limit  int
}

// ProjectRepository stores projects. Soft-deleted projects are excluded from
// every read.
type ProjectRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Project, error)
	// LockByID reads the project and holds a row lock on it until the
	// enclosing transaction ends.
	LockByID(ctx context.Context, id string) (*domain.Project, error)
	List(ctx context.Context, filter ProjectFilter) ([]domain.Project, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Project, error)
	// Create assigns ID when empty and a creation time strictly greater than
	// any previously stored project.
	Create(ctx context.Context, project *domain.Project) error
	Update(ctx context.Context, project *domain.Project) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
}
