package usecase

import (
	"context"

	"github.com/wafflestudio/waffice/domain"
)

// AuditLogger appends history entries inside the caller's transaction.
type AuditLogger interface {
	Log(ctx context.Context, userID string, action domain.AuditAction, payload map[string]any, actorID string) (*domain.AuditEntry, error)
}

// MemberAdder registers a user in a project, idempotently.
type MemberAdder interface {
	Add(ctx context.Context, in domain.MemberInput, actorID string) (*domain.Membership, error)
}

// LeaderChecker answers whether a user currently leads a project.
type LeaderChecker interface {
	IsLeader(ctx context.Context, projectID, userID string) (bool, error)
}

// IdentityInvalidator drops cached principals after a user changes.
type IdentityInvalidator interface {
	Invalidate(ctx context.Context, userID string)
}
