package boltdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
)

type projectRepository struct {
	store *Store
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	var project *domain.Project
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		var err error
		project, err = liveProject(tx, id)
		return err
	})
	if err != nil {
		return nil, domain.StorageError("get project", err)
	}
	return project, nil
}

// LockByID needs no explicit lock: the enclosing write transaction already
// excludes every other writer.
func (r *projectRepository) LockByID(ctx context.Context, id string) (*domain.Project, error) {
	return r.GetByID(ctx, id)
}

func (r *projectRepository) List(ctx context.Context, filter repository.ProjectFilter) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		return each(tx, bucketProjects, func(project domain.Project) error {
			if project.IsDeleted() {
				return nil
			}
			if filter.Status != "" && project.Status != filter.Status {
				return nil
			}
			if filter.Before != nil && !project.CreatedAt.Before(*filter.Before) {
				return nil
			}
			projects = append(projects, project)
			return nil
		})
	})
	if err != nil {
		return nil, domain.StorageError("list projects", err)
	}

	sortNewestFirst(projects)
	if limit := clampLimit(filter.Limit); len(projects) > limit {
		projects = projects[:limit]
	}
	return projects, nil
}

func (r *projectRepository) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	var projects []domain.Project
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		seen := make(map[string]bool)
		return each(tx, bucketMemberships, func(m domain.Membership) error {
			if m.UserID != userID || !m.IsActive() || seen[m.ProjectID] {
				return nil
			}
			seen[m.ProjectID] = true
			project, err := liveProject(tx, m.ProjectID)
			if err == domain.ErrProjectNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			projects = append(projects, *project)
			return nil
		})
	})
	if err != nil {
		return nil, domain.StorageError("list user projects", err)
	}
	sortNewestFirst(projects)
	return projects, nil
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	if project == nil {
		return domain.ErrInvalidPayload
	}
	if project.ID == "" {
		project.ID = uuid.NewString()
	}

	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		created, err := r.store.nextStamp(tx, "projects")
		if err != nil {
			return err
		}
		project.CreatedAt = created
		project.UpdatedAt = created
		return put(tx, bucketProjects, project.ID, project)
	})
	return domain.StorageError("create project", err)
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	if project == nil {
		return domain.ErrInvalidPayload
	}

	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		current, err := liveProject(tx, project.ID)
		if err != nil {
			return err
		}
		current.Name = project.Name
		current.Description = project.Description
		current.Status = project.Status
		current.StartDate = project.StartDate
		current.EndDate = project.EndDate
		current.UpdatedAt = r.store.now().UTC()
		project.UpdatedAt = current.UpdatedAt
		return put(tx, bucketProjects, current.ID, current)
	})
	return domain.StorageError("update project", err)
}

func (r *projectRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		project, err := liveProject(tx, id)
		if err != nil {
			return err
		}
		deleted := at.UTC()
		project.DeletedAt = &deleted
		project.UpdatedAt = deleted
		return put(tx, bucketProjects, project.ID, project)
	})
	return domain.StorageError("delete project", err)
}

func liveProject(tx *bolt.Tx, id string) (*domain.Project, error) {
	var project domain.Project
	found, err := get(tx, bucketProjects, id, &project)
	if err != nil {
		return nil, err
	}
	if !found || project.IsDeleted() {
		return nil, domain.ErrProjectNotFound
	}
	return &project, nil
}

func sortNewestFirst(projects []domain.Project) {
	sort.Slice(projects, func(i, j int) bool {
		return projects[i].CreatedAt.After(projects[j].CreatedAt)
	})
}
