package project

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/internal/pagination"
	"github.com/wafflestudio/waffice/pkg/logger"
	"github.com/wafflestudio/waffice/repository"
	"github.com/wafflestudio/waffice/usecase"
)

// DefaultPageSize applies when the caller passes no usable limit.
var DefaultPageSize = pagination.PageSizeConfig{Default: 20, Max: 100}

// ListParams selects one page of projects. Cursor is the next_cursor of a
// previous page.
type ListParams struct {
	Cursor *time.Time
	Limit  int
	Status domain.ProjectStatus
}

type UseCase struct {
	tx       repository.Transactor
	projects repository.ProjectRepository
	members  repository.MembershipRepository
	users    repository.UserRepository
	adder    usecase.MemberAdder
	pages    pagination.PageSizeConfig
	clock    func() time.Time
	logger   *zap.Logger
}

func New(
	tx repository.Transactor,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	users repository.UserRepository,
	adder usecase.MemberAdder,
	pages pagination.PageSizeConfig,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pages.Default <= 0 {
		pages = DefaultPageSize
	}
	return &UseCase{
		tx:       tx,
		projects: projects,
		members:  members,
		users:    users,
		adder:    adder,
		pages:    pages,
		clock:    time.Now,
		logger:   logger,
	}
}

// Create stores the project and its initial members in one transaction.
// With no members listed, the creator joins as the sole leader under
// leaderPosition. An explicit member list must name at least one leader.
// Every referenced user is checked before anything is written.
func (uc *UseCase) Create(ctx context.Context, in domain.NewProject, creatorID, leaderPosition string) (*domain.Project, error) {
	members := in.Members
	if len(members) == 0 {
		if creatorID == "" {
			return nil, domain.ErrNoLeader
		}
		members = []domain.MemberInput{{UserID: creatorID, Role: domain.RoleLeader, Position: leaderPosition}}
	} else if !in.HasLeader() {
		return nil, domain.ErrNoLeader
	}
	for _, m := range members {
		if !m.Role.Valid() {
			return nil, domain.Invalid("unknown member role %q", m.Role)
		}
	}

	status := in.Status
	if status == "" {
		status = domain.ProjectStatusActive
	}
	start := in.StartDate
	if start.IsZero() {
		start = uc.clock()
	}
	project := &domain.Project{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Status:      status,
		StartDate:   domain.DateOf(start),
	}
	if in.EndDate != nil {
		end := domain.DateOf(*in.EndDate)
		project.EndDate = &end
	}
	if err := project.Validate(); err != nil {
		return nil, err
	}

	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, m := range members {
			if _, err := uc.users.GetByID(ctx, m.UserID); err != nil {
				return err
			}
		}
		if err := uc.projects.Create(ctx, project); err != nil {
			return err
		}
		for _, m := range members {
			m.ProjectID = project.ID
			if _, err := uc.adder.Add(ctx, m, creatorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		uc.log(ctx).Warn("create project failed", zap.String("name", project.Name), zap.Error(err))
		return nil, err
	}

	uc.log(ctx).Info("project created",
		zap.String("project_id", project.ID),
		zap.Int("members", len(members)))
	return project, nil
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.Project, error) {
	return uc.projects.GetByID(ctx, id)
}

// GetWithMembers loads the project and its active members with their
// identities.
func (uc *UseCase) GetWithMembers(ctx context.Context, id string) (*domain.ProjectDetail, error) {
	project, err := uc.projects.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := uc.members.ListActiveWithUsers(ctx, id)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []domain.ProjectMember{}
	}
	return &domain.ProjectDetail{Project: *project, Members: members}, nil
}

// Update applies the non-nil fields of patch. Membership is untouched.
func (uc *UseCase) Update(ctx context.Context, id string, patch domain.ProjectPatch) (*domain.Project, error) {
	var project *domain.Project
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		project, err = uc.projects.LockByID(ctx, id)
		if err != nil {
			return err
		}
		patch.Apply(project)
		project.Name = strings.TrimSpace(project.Name)
		if err := project.Validate(); err != nil {
			return err
		}
		return uc.projects.Update(ctx, project)
	})
	if err != nil {
		return nil, err
	}

	uc.log(ctx).Info("project updated", zap.String("project_id", id))
	return project, nil
}

// Delete soft-deletes the project. Membership rows stay in place.
func (uc *UseCase) Delete(ctx context.Context, id string) error {
	if err := uc.projects.SoftDelete(ctx, id, uc.clock()); err != nil {
		return err
	}
	uc.log(ctx).Info("project deleted", zap.String("project_id", id))
	return nil
}

// List returns one page of live projects, newest first.
func (uc *UseCase) List(ctx context.Context, params ListParams) (pagination.Page[domain.Project], error) {
	if params.Status != "" && !params.Status.Valid() {
		return pagination.Page[domain.Project]{}, domain.Invalid("unknown project status %q", params.Status)
	}
	limit := pagination.ClampPageSize(params.Limit, uc.pages)
	rows, err := uc.projects.List(ctx, repository.ProjectFilter{
		Status: params.Status,
		Before: params.Cursor,
		Limit:  limit + 1,
	})
	if err != nil {
		return pagination.Page[domain.Project]{}, err
	}
	return pagination.Trim(rows, limit, func(p domain.Project) time.Time { return p.CreatedAt }), nil
}

// ListByUser returns live projects where userID holds an active membership.
func (uc *UseCase) ListByUser(ctx context.Context, userID string) ([]domain.Project, error) {
	projects, err := uc.projects.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	return projects, nil
}

func (uc *UseCase) log(ctx context.Context) *zap.Logger {
	return logger.WithRequestID(ctx, uc.logger)
}
