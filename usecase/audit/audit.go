package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/pkg/logger"
	"github.com/wafflestudio/waffice/repository"
	"github.com/wafflestudio/waffice/usecase"
)

// UseCase is the append-only history log. Entries are never updated or
// deleted through it.
type UseCase struct {
	entries repository.AuditRepository
	clock   func() time.Time
	logger  *zap.Logger
}

func New(entries repository.AuditRepository, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		entries: entries,
		clock:   time.Now,
		logger:  logger,
	}
}

var _ usecase.AuditLogger = (*UseCase)(nil)

// Log appends one entry. An empty actorID records a system-initiated event.
// When ctx carries a transaction the entry commits or rolls back with it.
func (uc *UseCase) Log(ctx context.Context, userID string, action domain.AuditAction, payload map[string]any, actorID string) (*domain.AuditEntry, error) {
	if userID == "" || !action.Valid() {
		return nil, domain.ErrInvalidPayload
	}
	if payload == nil {
		payload = map[string]any{}
	}

	entry := &domain.AuditEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Action:    action,
		Payload:   payload,
		CreatedAt: uc.clock().UTC(),
	}
	if actorID != "" {
		actor := actorID
		entry.ActorID = &actor
	}

	if err := uc.entries.Append(ctx, entry); err != nil {
		logger.WithRequestID(ctx, uc.logger).Error("failed to append audit entry",
			zap.String("user_id", userID),
			zap.String("action", string(action)),
			zap.Error(err))
		return nil, err
	}
	return entry, nil
}

// ListByUser returns a user's entries, newest first.
func (uc *UseCase) ListByUser(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	entries, err := uc.entries.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []domain.AuditEntry{}
	}
	return entries, nil
}
