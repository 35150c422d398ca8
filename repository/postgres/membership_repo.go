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

const membershipColumns = `m.id, m.project_id, m.user_id, m.role, m.position, m.joined_at, m.left_at, m.previous_id, m.created_at`

type membershipRepository struct {
	db *DB
}

// NewMembershipRepository returns a Postgres-backed MembershipRepository.
func NewMembershipRepository(db *DB) repository.MembershipRepository {
	return &membershipRepository{db: db}
}

func (r *membershipRepository) GetActive(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	const query = `
	SELECT ` + membershipColumns + `
	FROM project_members m
	WHERE m.project_id = $1 AND m.user_id = $2 AND m.left_at IS NULL
	`
	return scanMembership(r.db.conn(ctx).QueryRow(ctx, query, projectID, userID))
}

func (r *membershipRepository) ListActive(ctx context.Context, projectID string) ([]domain.Membership, error) {
	const query = `
	SELECT ` + membershipColumns + `
	FROM project_members m
	WHERE m.project_id = $1 AND m.left_at IS NULL
	ORDER BY m.joined_at, m.created_at
	`
	return r.collect(ctx, query, projectID)
}

func (r *membershipRepository) ListActiveWithUsers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	const query = `
	SELECT ` + membershipColumns + `, u.email, u.name
	FROM project_members m
	JOIN users u ON u.id = m.user_id
	WHERE m.project_id = $1 AND m.left_at IS NULL
	ORDER BY m.joined_at, m.created_at
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, projectID)
	if err != nil {
		return nil, domain.StorageError("list project members", err)
	}
	defer rows.Close()

	var members []domain.ProjectMember
	for rows.Next() {
		var (
			member     domain.ProjectMember
			role       string
			previousID *string
		)
		if err := rows.Scan(
			&member.ID,
			&member.ProjectID,
			&member.UserID,
			&role,
			&member.Position,
			&member.JoinedAt,
			&member.LeftAt,
			&previousID,
			&member.CreatedAt,
			&member.Email,
			&member.Name,
		); err != nil {
			return nil, domain.StorageError("scan project member", err)
		}
		member.Role = domain.Role(role)
		if previousID != nil {
			member.PreviousID = *previousID
		}
		members = append(members, member)
	}
	return members, domain.StorageError("list project members", rows.Err())
}

func (r *membershipRepository) CountLeaders(ctx context.Context, projectID string) (int, error) {
	const query = `
	SELECT COUNT(*)
	FROM project_members
	WHERE project_id = $1 AND role = 'leader' AND left_at IS NULL
	`
	var count int
	if err := r.db.conn(ctx).QueryRow(ctx, query, projectID).Scan(&count); err != nil {
		return 0, domain.StorageError("count leaders", err)
	}
	return count, nil
}

// LockActiveLeaders uses FOR UPDATE so a concurrent transaction touching the
// same leaders waits here and then re-evaluates left_at after this one
// commits. Aggregates cannot be locked, hence the row fetch.
func (r *membershipRepository) LockActiveLeaders(ctx context.Context, projectID string) ([]domain.Membership, error) {
	const query = `
	SELECT ` + membershipColumns + `
	FROM project_members m
	WHERE m.project_id = $1 AND m.role = 'leader' AND m.left_at IS NULL
	ORDER BY m.id
	FOR UPDATE
	`
	return r.collect(ctx, query, projectID)
}

func (r *membershipRepository) History(ctx context.Context, projectID, userID string) ([]domain.Membership, error) {
	const query = `
	SELECT ` + membershipColumns + `
	FROM project_members m
	WHERE m.project_id = $1 AND m.user_id = $2
	ORDER BY m.joined_at, m.created_at
	`
	return r.collect(ctx, query, projectID, userID)
}

func (r *membershipRepository) Create(ctx context.Context, membership *domain.Membership) error {
	if membership == nil {
		return domain.ErrInvalidPayload
	}
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO project_members (id, project_id, user_id, role, position, joined_at, previous_id, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, clock_timestamp()))
	RETURNING created_at
	`

	if err := r.db.conn(ctx).QueryRow(ctx, query,
		membership.ID,
		membership.ProjectID,
		membership.UserID,
		string(membership.Role),
		membership.Position,
		membership.JoinedAt,
		nullString(membership.PreviousID),
		nullTime(membership.CreatedAt),
	).Scan(&membership.CreatedAt); err != nil {
		if isUniqueViolation(err, "project_members_active_idx") {
			return domain.WrapError(domain.ErrCodeConflict, "user already has an active membership", err)
		}
		return domain.StorageError("create membership", err)
	}
	return nil
}

func (r *membershipRepository) End(ctx context.Context, id string, leftAt time.Time) error {
	const query = `UPDATE project_members SET left_at = $2 WHERE id = $1 AND left_at IS NULL`
	tag, err := r.db.conn(ctx).Exec(ctx, query, id, leftAt)
	if err != nil {
		return domain.StorageError("end membership", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrMembershipNotFound
	}
	return nil
}

func (r *membershipRepository) collect(ctx context.Context, query string, args ...any) ([]domain.Membership, error) {
	rows, err := r.db.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, domain.StorageError("list memberships", err)
	}
	defer rows.Close()

	var memberships []domain.Membership
	for rows.Next() {
		membership, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		memberships = append(memberships, *membership)
	}
	return memberships, domain.StorageError("list memberships", rows.Err())
}

func scanMembership(row scanner) (*domain.Membership, error) {
	var (
		membership domain.Membership
		role       string
		previousID *string
	)
	if err := row.Scan(
		&membership.ID,
		&membership.ProjectID,
		&membership.UserID,
		&role,
		&membership.Position,
		&membership.JoinedAt,
		&membership.LeftAt,
		&previousID,
		&membership.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMembershipNotFound
		}
		return nil, domain.StorageError("scan membership", err)
	}
	membership.Role = domain.Role(role)
	if previousID != nil {
		membership.PreviousID = *previousID
	}
	return &membership, nil
}
