package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
)

const projectColumns = `p.id, p.name, p.description, p.status, p.start_date, p.end_date, p.created_at, p.updated_at, p.deleted_at`

type projectRepository struct {
	db *DB
}

// NewProjectRepository returns a Postgres-backed implementation of ProjectRepository.
func NewProjectRepository(db *DB) repository.ProjectRepository {
	return &projectRepository{db: db}
}

func (r *projectRepository) GetByID(ctx context.Context, id string) (*domain.Project, error) {
	const query = `
	SELECT ` + projectColumns + `
	FROM projects p
	WHERE p.id = $1 AND p.deleted_at IS NULL
	`
	return scanProject(r.db.conn(ctx).QueryRow(ctx, query, id))
}

func (r *projectRepository) LockByID(ctx context.Context, id string) (*domain.Project, error) {
	const query = `
	SELECT ` + projectColumns + `
	FROM projects p
	WHERE p.id = $1 AND p.deleted_at IS NULL
	FOR UPDATE
	`
	return scanProject(r.db.conn(ctx).QueryRow(ctx, query, id))
}

func (r *projectRepository) List(ctx context.Context, filter repository.ProjectFilter) ([]domain.Project, error) {
	const query = `
	SELECT ` + projectColumns + `
	FROM projects p
	WHERE p.deleted_at IS NULL
	  AND ($1 = '' OR p.status = $1)
	  AND ($2::timestamptz IS NULL OR p.created_at < $2)
	ORDER BY p.created_at DESC
	LIMIT $3
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, string(filter.Status), filter.Before, clampLimit(filter.Limit))
	if err != nil {
		return nil, domain.StorageError("list projects", err)
	}
	return collectProjects(rows)
}

func (r *projectRepository) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	const query = `
	SELECT DISTINCT ` + projectColumns + `
	FROM projects p
	JOIN project_members m ON m.project_id = p.id
	WHERE m.user_id = $1
	  AND m.left_at IS NULL
	  AND p.deleted_at IS NULL
	ORDER BY p.created_at DESC
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, domain.StorageError("list user projects", err)
	}
	return collectProjects(rows)
}

func (r *projectRepository) Create(ctx context.Context, project *domain.Project) error {
	if project == nil {
		return domain.ErrInvalidPayload
	}
	if project.ID == "" {
		project.ID = uuid.NewString()
	}

	// created_at is the pagination cursor, so it must be unique and increasing.
	const query = `
	INSERT INTO projects (id, name, description, status, start_date, end_date, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6,
		GREATEST(clock_timestamp(), (SELECT MAX(created_at) FROM projects) + INTERVAL '1 microsecond'),
		NOW())
	RETURNING created_at, updated_at
	`

	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		conn := r.db.conn(ctx)
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('projects.created_at'))`); err != nil {
			return domain.StorageError("lock project sequence", err)
		}
		if err := conn.QueryRow(ctx, query,
			project.ID,
			project.Name,
			project.Description,
			string(project.Status),
			project.StartDate,
			project.EndDate,
		).Scan(&project.CreatedAt, &project.UpdatedAt); err != nil {
			return domain.StorageError("create project", err)
		}
		return nil
	})
}

func (r *projectRepository) Update(ctx context.Context, project *domain.Project) error {
	if project == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE projects
	SET name = $2,
		description = $3,
		status = $4,
		start_date = $5,
		end_date = $6,
		updated_at = NOW()
	WHERE id = $1 AND deleted_at IS NULL
	RETURNING updated_at
	`

	if err := r.db.conn(ctx).QueryRow(ctx, query,
		project.ID,
		project.Name,
		project.Description,
		string(project.Status),
		project.StartDate,
		project.EndDate,
	).Scan(&project.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrProjectNotFound
		}
		return domain.StorageError("update project", err)
	}
	return nil
}

func (r *projectRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE projects SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.conn(ctx).Exec(ctx, query, id, at)
	if err != nil {
		return domain.StorageError("delete project", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrProjectNotFound
	}
	return nil
}

func collectProjects(rows pgx.Rows) ([]domain.Project, error) {
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *project)
	}
	return projects, domain.StorageError("list projects", rows.Err())
}

func scanProject(row scanner) (*domain.Project, error) {
	var (
		project domain.Project
		status  string
	)
	if err := row.Scan(
		&project.ID,
		&project.Name,
		&project.Description,
		&status,
		&project.StartDate,
		&project.EndDate,
		&project.CreatedAt,
		&project.UpdatedAt,
		&project.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, domain.StorageError("scan project", err)
	}
	project.Status = domain.ProjectStatus(status)
	return &project, nil
}
