package domain

import "time"

// User represents a registered member of the organization.
type User struct {
	ID            string        `json:"id"`
	Email         string        `json:"email"`
	Name          string        `json:"name"`
	Qualification Qualification `json:"qualification"`
	IsAdmin       bool          `json:"is_admin"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	DeletedAt     *time.Time    `json:"deleted_at,omitempty"`
}

func (u *User) IsDeleted() bool {
	return u != nil && u.DeletedAt != nil
}

// Principal returns the identity tuple used by authorization gates.
func (u *User) Principal() Principal {
	if u == nil {
		return Principal{}
	}
	return Principal{
		UserID:        u.ID,
		Qualification: u.Qualification,
		IsAdmin:       u.IsAdmin,
	}
}

// Principal is the resolved caller identity handed to the core by the
// authentication layer.
type Principal struct {
	UserID        string        `json:"user_id"`
	Qualification Qualification `json:"qualification"`
	IsAdmin       bool          `json:"is_admin"`
}

func (p Principal) IsZero() bool {
	return p.UserID == ""
}

// ProfilePatch carries optional self-service profile changes.
type ProfilePatch struct {
	Email *string
	Name  *string
}

// Apply copies the provided fields onto u and reports whether anything changed.
func (p ProfilePatch) Apply(u *User) bool {
	changed := false
	if p.Email != nil && *p.Email != u.Email {
		u.Email = *p.Email
		changed = true
	}
	if p.Name != nil && *p.Name != u.Name {
		u.Name = *p.Name
		changed = true
	}
	return changed
}

// UserUpdate is an administrative change. Qualification and IsAdmin changes
// are recorded in the user's history.
type UserUpdate struct {
	ProfilePatch
	Qualification *Qualification
	IsAdmin       *bool
}
