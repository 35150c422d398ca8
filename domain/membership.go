package domain

import "time"

// Role is the part a user plays within one membership interval.
type Role string

const (
	RoleLeader Role = "leader"
	RoleMember Role = "member"
)

func (r Role) Valid() bool {
	return r == RoleLeader || r == RoleMember
}

// Membership is one interval of a user's participation in a project. A row
// with a nil LeftAt is active. Role or position changes end the current row
// and start a new one whose PreviousID points back, so the rows for a
// (project, user) pair form a history chain.
type Membership struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	UserID     string     `json:"user_id"`
	Role       Role       `json:"role"`
	Position   string     `json:"position,omitempty"`
	JoinedAt   time.Time  `json:"joined_at"`
	LeftAt     *time.Time `json:"left_at,omitempty"`
	PreviousID string     `json:"previous_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (m *Membership) IsActive() bool {
	return m != nil && m.LeftAt == nil
}

// IsActiveLeader reports whether m is an active row with the leader role.
func (m *Membership) IsActiveLeader() bool {
	return m.IsActive() && m.Role == RoleLeader
}

// ProjectMember is an active membership joined with the member's identity.
type ProjectMember struct {
	Membership
	Email string `json:"email"`
	Name  string `json:"name"`
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// MemberInput describes a membership to create.
type MemberInput struct {
	ProjectID string
	UserID    string
	Role      Role
	Position  string
}

// MemberChange holds optional role and position updates; nil fields keep the
// current value.
type MemberChange struct {
	Role     *Role
	Position *string
}
