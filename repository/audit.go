package repository

import (
	"context"

	"github.com/wafflestudio/waffice/domain"
)

// AuditRepository is append-only.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListByUser(ctx context.Context, userID string) ([]domain.AuditEntry, error)
}
