package postgres

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
)

type auditRepository struct {
	db *DB
}

// NewAuditRepository creates a Postgres-backed append-only audit log.
func NewAuditRepository(db *DB) repository.AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if entry == nil {
		return domain.ErrInvalidPayload
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	const query = `
	INSERT INTO audit_entries (id, user_id, action, payload, actor_id, created_at)
	VALUES ($1, $2, $3, $4, $5, COALESCE($6, clock_timestamp()))
	RETURNING created_at
	`

	if err := r.db.conn(ctx).QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		string(entry.Action),
		marshalPayload(entry.Payload),
		entry.ActorID,
		nullTime(entry.CreatedAt),
	).Scan(&entry.CreatedAt); err != nil {
		return domain.StorageError("append audit entry", err)
	}
	return nil
}

func (r *auditRepository) ListByUser(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	const query = `
	SELECT id, user_id, action, payload, actor_id, created_at
	FROM audit_entries
	WHERE user_id = $1
	ORDER BY created_at DESC, seq DESC
	`
	rows, err := r.db.conn(ctx).Query(ctx, query, userID)
	if err != nil {
		return nil, domain.StorageError("list audit entries", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			entry   domain.AuditEntry
			action  string
			payload []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&action,
			&payload,
			&entry.ActorID,
			&entry.CreatedAt,
		); err != nil {
			return nil, domain.StorageError("scan audit entry", err)
		}
		entry.Action = domain.AuditAction(action)
		if len(payload) > 0 {
			_ = json.Unmarshal(payload, &entry.Payload)
		}
		entries = append(entries, entry)
	}
	return entries, domain.StorageError("list audit entries", rows.Err())
}
