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

const userColumns = `id, email, name, qualification, is_admin, created_at, updated_at, deleted_at`

type userRepository struct {
	db *DB
}

// NewUserRepository instantiates a Postgres-backed user repository.
func NewUserRepository(db *DB) repository.UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`
	return scanUser(r.db.conn(ctx).QueryRow(ctx, query, id))
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM users
		WHERE email = $1 AND deleted_at IS NULL
	`
	return scanUser(r.db.conn(ctx).QueryRow(ctx, query, email))
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	const query = `
	SELECT ` + userColumns + `
	FROM users
	WHERE deleted_at IS NULL
	  AND ($1 = '' OR qualification = $1)
	  AND ($2::timestamptz IS NULL OR created_at < $2)
	ORDER BY created_at DESC
	LIMIT $3
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, string(filter.Qualification), filter.Before, clampLimit(filter.Limit))
	if err != nil {
		return nil, domain.StorageError("list users", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, domain.StorageError("list users", rows.Err())
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO users (id, email, name, qualification, is_admin, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5,
		GREATEST(clock_timestamp(), (SELECT MAX(created_at) FROM users) + INTERVAL '1 microsecond'),
		NOW())
	RETURNING created_at, updated_at
	`

	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		conn := r.db.conn(ctx)
		if _, err := conn.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('users.created_at'))`); err != nil {
			return domain.StorageError("lock user sequence", err)
		}
		if err := conn.QueryRow(ctx, query,
			user.ID,
			user.Email,
			user.Name,
			string(user.Qualification),
			user.IsAdmin,
		).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
			if isUniqueViolation(err, "users_email_active_idx") {
				return domain.ErrEmailTaken
			}
			return domain.StorageError("create user", err)
		}
		return nil
	})
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}

	const query = `
	UPDATE users
	SET email = $2,
		name = $3,
		qualification = $4,
		is_admin = $5,
		updated_at = NOW()
	WHERE id = $1 AND deleted_at IS NULL
	RETURNING updated_at
	`

	if err := r.db.conn(ctx).QueryRow(ctx, query,
		user.ID,
		user.Email,
		user.Name,
		string(user.Qualification),
		user.IsAdmin,
	).Scan(&user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrUserNotFound
		}
		if isUniqueViolation(err, "users_email_active_idx") {
			return domain.ErrEmailTaken
		}
		return domain.StorageError("update user", err)
	}
	return nil
}

func (r *userRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE users SET deleted_at = $2, updated_at = NOW() WHERE id = $1 AND deleted_at IS NULL`
	tag, err := r.db.conn(ctx).Exec(ctx, query, id, at)
	if err != nil {
		return domain.StorageError("delete user", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func scanUser(row scanner) (*domain.User, error) {
	var (
		user          domain.User
		qualification string
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&qualification,
		&user.IsAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, domain.StorageError("scan user", err)
	}
	user.Qualification = domain.Qualification(qualification)
	return &user, nil
}
