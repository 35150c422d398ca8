package domain

import "time"

// AuditAction names the kind of event recorded against a user.
type AuditAction string

const (
	AuditQualificationChanged AuditAction = "qualification_changed"
	AuditAdminGranted         AuditAction = "admin_granted"
	AuditAdminRevoked         AuditAction = "admin_revoked"
	AuditProjectJoined        AuditAction = "project_joined"
	AuditProjectLeft          AuditAction = "project_left"
	AuditProjectRoleChanged   AuditAction = "project_role_changed"
)

func (a AuditAction) Valid() bool {
	switch a {
	case AuditQualificationChanged, AuditAdminGranted, AuditAdminRevoked,
		AuditProjectJoined, AuditProjectLeft, AuditProjectRoleChanged:
		return true
	}
	return false
}

// AuditEntry is an immutable record in a user's history. ActorID is nil for
// system-initiated events. UserID is a weak reference: removing the user
// never removes its history.
type AuditEntry struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Action    AuditAction    `json:"action"`
	Payload   map[string]any `json:"payload"`
	ActorID   *string        `json:"actor_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
