package transport

import (
	"strings"
	"time"

	"github.com/wafflestudio/waffice/domain"
)

// Date accepts "2006-01-02" or RFC 3339 and renders as a plain date.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		return nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return domain.Invalid("invalid date %q", raw)
	}
	d.Time = t
	return nil
}

func (d *Date) ptr() *time.Time {
	if d == nil || d.IsZero() {
		return nil
	}
	t := d.Time
	return &t
}

type RegisterRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type ProfileUpdateRequest struct {
	Email *string `json:"email"`
	Name  *string `json:"name"`
}

func (r ProfileUpdateRequest) Patch() domain.ProfilePatch {
	return domain.ProfilePatch{Email: r.Email, Name: r.Name}
}

type UserUpdateRequest struct {
	Email         *string `json:"email"`
	Name          *string `json:"name"`
	Qualification *string `json:"qualification"`
	IsAdmin       *bool   `json:"is_admin"`
}

func (r UserUpdateRequest) Update() (domain.UserUpdate, error) {
	update := domain.UserUpdate{
		ProfilePatch: domain.ProfilePatch{Email: r.Email, Name: r.Name},
		IsAdmin:      r.IsAdmin,
	}
	if r.Qualification != nil {
		q, err := domain.ParseQualification(*r.Qualification)
		if err != nil {
			return domain.UserUpdate{}, err
		}
		update.Qualification = &q
	}
	return update, nil
}

type ApproveRequest struct {
	Qualification string `json:"qualification"`
}

type MemberRequest struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	Position string `json:"position"`
}

func (r MemberRequest) Input(projectID string) domain.MemberInput {
	role := domain.Role(strings.ToLower(strings.TrimSpace(r.Role)))
	if role == "" {
		role = domain.RoleMember
	}
	return domain.MemberInput{
		ProjectID: projectID,
		UserID:    r.UserID,
		Role:      role,
		Position:  r.Position,
	}
}

type MemberUpdateRequest struct {
	Role     *string `json:"role"`
	Position *string `json:"position"`
}

func (r MemberUpdateRequest) Change() domain.MemberChange {
	change := domain.MemberChange{Position: r.Position}
	if r.Role != nil {
		role := domain.Role(strings.ToLower(strings.TrimSpace(*r.Role)))
		change.Role = &role
	}
	return change
}

type ProjectCreateRequest struct {
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Status         string          `json:"status"`
	StartDate      *Date           `json:"start_date"`
	EndDate        *Date           `json:"end_date"`
	LeaderPosition string          `json:"leader_position"`
	Members        []MemberRequest `json:"members"`
}

func (r ProjectCreateRequest) NewProject() domain.NewProject {
	in := domain.NewProject{
		Name:        r.Name,
		Description: r.Description,
		Status:      domain.ProjectStatus(strings.ToLower(r.Status)),
		EndDate:     r.EndDate.ptr(),
	}
	if start := r.StartDate.ptr(); start != nil {
		in.StartDate = *start
	}
	for _, m := range r.Members {
		in.Members = append(in.Members, m.Input(""))
	}
	return in
}

type ProjectUpdateRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
	StartDate   *Date   `json:"start_date"`
	EndDate     *Date   `json:"end_date"`
}

func (r ProjectUpdateRequest) Patch() domain.ProjectPatch {
	patch := domain.ProjectPatch{
		Name:        r.Name,
		Description: r.Description,
		StartDate:   r.StartDate.ptr(),
		EndDate:     r.EndDate.ptr(),
	}
	if r.Status != nil {
		status := domain.ProjectStatus(strings.ToLower(*r.Status))
		patch.Status = &status
	}
	return patch
}
