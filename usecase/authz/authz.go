package authz

import (
	"context"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/usecase"
)

// ProjectReader loads live projects.
type ProjectReader interface {
	Get(ctx context.Context, id string) (*domain.Project, error)
}

// Gate answers authorization questions for a resolved principal. It only
// reads; callers that mutate afterwards re-check invariants under their own
// transaction.
type Gate struct {
	leaders  usecase.LeaderChecker
	projects ProjectReader
}

func New(leaders usecase.LeaderChecker, projects ProjectReader) *Gate {
	return &Gate{leaders: leaders, projects: projects}
}

var (
	errAssociateRequired = domain.Forbidden("associate membership or higher required")
	errRegularRequired   = domain.Forbidden("regular membership or higher required")
	errActiveRequired    = domain.Forbidden("active membership required")
	errAdminRequired     = domain.Forbidden("admin permission required")
)

// RequireAtLeast fails with FORBIDDEN unless p sits at or above min on the
// qualification ladder.
func RequireAtLeast(p domain.Principal, min domain.Qualification) error {
	if p.IsZero() {
		return domain.ErrUnauthorized
	}
	if p.Qualification.AtLeast(min) {
		return nil
	}
	switch min {
	case domain.QualificationAssociate:
		return errAssociateRequired
	case domain.QualificationRegular:
		return errRegularRequired
	case domain.QualificationActive:
		return errActiveRequired
	}
	return domain.Forbidden("qualification " + string(min) + " or higher required")
}

func RequireAdmin(p domain.Principal) error {
	if p.IsZero() {
		return domain.ErrUnauthorized
	}
	if !p.IsAdmin {
		return errAdminRequired
	}
	return nil
}

// IsLeaderOrAdmin reports whether p is an admin or currently leads
// projectID. Errors are storage failures only.
func (g *Gate) IsLeaderOrAdmin(ctx context.Context, p domain.Principal, projectID string) (bool, error) {
	if p.IsZero() {
		return false, nil
	}
	if p.IsAdmin {
		return true, nil
	}
	return g.leaders.IsLeader(ctx, projectID, p.UserID)
}

// RequireLeaderOrAdmin returns ErrForbidden when p may not modify projectID.
func (g *Gate) RequireLeaderOrAdmin(ctx context.Context, p domain.Principal, projectID string) error {
	if p.IsZero() {
		return domain.ErrUnauthorized
	}
	ok, err := g.IsLeaderOrAdmin(ctx, p, projectID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrForbidden
	}
	return nil
}

// AuthorizeProject returns the project p may modify. Admins and leaders get
// ErrProjectNotFound for a missing or deleted project; everyone else gets
// ErrForbidden without learning whether it exists.
func (g *Gate) AuthorizeProject(ctx context.Context, p domain.Principal, projectID string) (*domain.Project, error) {
	if err := g.RequireLeaderOrAdmin(ctx, p, projectID); err != nil {
		return nil, err
	}
	return g.projects.Get(ctx, projectID)
}
