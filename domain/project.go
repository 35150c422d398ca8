package domain

import (
	"strings"
	"time"
)

// ProjectStatus tracks where a project is in its lifecycle.
type ProjectStatus string

const (
	ProjectStatusActive      ProjectStatus = "active"
	ProjectStatusMaintenance ProjectStatus = "maintenance"
	ProjectStatusEnded       ProjectStatus = "ended"
)

func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusMaintenance, ProjectStatusEnded:
		return true
	}
	return false
}

// Project is the aggregate that owns its membership rows. CreatedAt is
// strictly increasing across projects and doubles as the pagination cursor.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Status      ProjectStatus `json:"status"`
	StartDate   time.Time     `json:"start_date"`
	EndDate     *time.Time    `json:"end_date,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
}

func (p *Project) IsDeleted() bool {
	return p != nil && p.DeletedAt != nil
}

// Validate checks the fields every stored project must satisfy.
func (p *Project) Validate() error {
	if p == nil {
		return ErrInvalidPayload
	}
	if strings.TrimSpace(p.Name) == "" {
		return Invalid("project name is required")
	}
	if len(p.Name) > 128 {
		return Invalid("project name must be at most 128 characters")
	}
	if !p.Status.Valid() {
		return Invalid("unknown project status %q", p.Status)
	}
	if p.EndDate != nil && p.EndDate.Before(p.StartDate) {
		return Invalid("project end date precedes start date")
	}
	return nil
}

// ProjectPatch holds optional field updates; nil fields are left untouched.
type ProjectPatch struct {
	Name        *string
	Description *string
	Status      *ProjectStatus
	StartDate   *time.Time
	EndDate     *time.Time
}

// Apply copies the provided fields onto p.
func (patch ProjectPatch) Apply(p *Project) {
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
	if patch.StartDate != nil {
		p.StartDate = DateOf(*patch.StartDate)
	}
	if patch.EndDate != nil {
		end := DateOf(*patch.EndDate)
		p.EndDate = &end
	}
}

// ProjectDetail is a project together with its active members.
type ProjectDetail struct {
	Project
	Members []ProjectMember `json:"members"`
}

// NewProject describes a project to create together with its initial
// members. ProjectID on the member inputs is ignored.
type NewProject struct {
	Name        string
	Description string
	Status      ProjectStatus
	StartDate   time.Time
	EndDate     *time.Time
	Members     []MemberInput
}

// HasLeader reports whether any initial member is a leader.
func (n NewProject) HasLeader() bool {
	for _, m := range n.Members {
		if m.Role == RoleLeader {
			return true
		}
	}
	return false
}
