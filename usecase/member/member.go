package member

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/pkg/logger"
	"github.com/wafflestudio/waffice/repository"
	"github.com/wafflestudio/waffice/usecase"
)

// UseCase mutates project memberships while keeping every live project led
// by at least one active leader. Each mutation runs in one transaction that
// first locks the project row, then the project's active leader rows, and
// commits together with exactly one audit entry.
type UseCase struct {
	tx       repository.Transactor
	projects repository.ProjectRepository
	members  repository.MembershipRepository
	users    repository.UserRepository
	audit    usecase.AuditLogger
	clock    func() time.Time
	logger   *zap.Logger
}

func New(
	tx repository.Transactor,
	projects repository.ProjectRepository,
	members repository.MembershipRepository,
	users repository.UserRepository,
	audit usecase.AuditLogger,
	logger *zap.Logger,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		tx:       tx,
		projects: projects,
		members:  members,
		users:    users,
		audit:    audit,
		clock:    time.Now,
		logger:   logger,
	}
}

var (
	_ usecase.MemberAdder   = (*UseCase)(nil)
	_ usecase.LeaderChecker = (*UseCase)(nil)
)

// GetActive returns the single active membership of userID in projectID, or
// ErrMembershipNotFound.
func (uc *UseCase) GetActive(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	return uc.members.GetActive(ctx, projectID, userID)
}

func (uc *UseCase) ListActive(ctx context.Context, projectID string) ([]domain.Membership, error) {
	rows, err := uc.members.ListActive(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.Membership{}
	}
	return rows, nil
}

func (uc *UseCase) CountLeaders(ctx context.Context, projectID string) (int, error) {
	return uc.members.CountLeaders(ctx, projectID)
}

func (uc *UseCase) IsLeader(ctx context.Context, projectID, userID string) (bool, error) {
	membership, err := uc.members.GetActive(ctx, projectID, userID)
	if errors.Is(err, domain.ErrMembershipNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return membership.Role == domain.RoleLeader, nil
}

// History returns every interval for the pair, oldest first.
func (uc *UseCase) History(ctx context.Context, projectID, userID string) ([]domain.Membership, error) {
	rows, err := uc.members.History(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.Membership{}
	}
	return rows, nil
}

// Add is idempotent: an existing active membership is returned unchanged and
// nothing is logged. Otherwise a new active row is created and one
// project_joined entry is appended.
func (uc *UseCase) Add(ctx context.Context, in domain.MemberInput, actorID string) (*domain.Membership, error) {
	if !in.Role.Valid() {
		return nil, domain.Invalid("unknown member role %q", in.Role)
	}

	var (
		result  *domain.Membership
		created bool
	)
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, err := uc.projects.LockByID(ctx, in.ProjectID)
		if err != nil {
			return err
		}

		existing, err := uc.members.GetActive(ctx, in.ProjectID, in.UserID)
		if err == nil {
			result = existing
			return nil
		}
		if !errors.Is(err, domain.ErrMembershipNotFound) {
			return err
		}

		if _, err := uc.users.GetByID(ctx, in.UserID); err != nil {
			return err
		}

		now := uc.clock()
		membership := &domain.Membership{
			ID:        uuid.NewString(),
			ProjectID: in.ProjectID,
			UserID:    in.UserID,
			Role:      in.Role,
			Position:  in.Position,
			JoinedAt:  domain.DateOf(now),
		}
		if err := uc.members.Create(ctx, membership); err != nil {
			return err
		}

		if _, err := uc.audit.Log(ctx, in.UserID, domain.AuditProjectJoined, map[string]any{
			"project_id":   project.ID,
			"project_name": project.Name,
			"role":         string(in.Role),
			"position":     in.Position,
		}, actorID); err != nil {
			return err
		}

		result = membership
		created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created {
		uc.log(ctx).Info("member added",
			zap.String("project_id", in.ProjectID),
			zap.String("user_id", in.UserID),
			zap.String("role", string(in.Role)))
	}
	return result, nil
}

// Remove ends an active membership. The last-leader check runs before the
// self-removal check, so removing a project's only leader always reports
// ErrLastLeader.
func (uc *UseCase) Remove(ctx context.Context, membership domain.Membership, actorID string) error {
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, current, err := uc.lockCurrent(ctx, membership)
		if err != nil {
			return err
		}

		if current.Role == domain.RoleLeader {
			if err := uc.ensureAnotherLeader(ctx, current); err != nil {
				return err
			}
		}
		if current.UserID == actorID {
			return domain.ErrCannotRemoveSelf
		}

		if err := uc.members.End(ctx, current.ID, domain.DateOf(uc.clock())); err != nil {
			return err
		}

		_, err = uc.audit.Log(ctx, current.UserID, domain.AuditProjectLeft, map[string]any{
			"project_id":   project.ID,
			"project_name": project.Name,
		}, actorID)
		return err
	})
	if err != nil {
		uc.logRejection(ctx, "remove member rejected", membership, err)
		return err
	}

	uc.log(ctx).Info("member removed",
		zap.String("project_id", membership.ProjectID),
		zap.String("user_id", membership.UserID))
	return nil
}

// Change replaces the active membership with a new row carrying the merged
// role and position. Demoting the only leader fails with ErrLastLeader and
// writes nothing.
func (uc *UseCase) Change(ctx context.Context, membership domain.Membership, change domain.MemberChange, actorID string) (*domain.Membership, error) {
	if change.Role != nil && !change.Role.Valid() {
		return nil, domain.Invalid("unknown member role %q", *change.Role)
	}

	var next *domain.Membership
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		project, current, err := uc.lockCurrent(ctx, membership)
		if err != nil {
			return err
		}

		role := current.Role
		if change.Role != nil {
			role = *change.Role
		}
		position := current.Position
		if change.Position != nil {
			position = *change.Position
		}

		if current.Role == domain.RoleLeader && role != domain.RoleLeader {
			if err := uc.ensureAnotherLeader(ctx, current); err != nil {
				return err
			}
		}

		today := domain.DateOf(uc.clock())
		if err := uc.members.End(ctx, current.ID, today); err != nil {
			return err
		}

		next = &domain.Membership{
			ID:         uuid.NewString(),
			ProjectID:  current.ProjectID,
			UserID:     current.UserID,
			Role:       role,
			Position:   position,
			JoinedAt:   today,
			PreviousID: current.ID,
		}
		if err := uc.members.Create(ctx, next); err != nil {
			return err
		}

		_, err = uc.audit.Log(ctx, current.UserID, domain.AuditProjectRoleChanged, map[string]any{
			"project_id":    project.ID,
			"from_role":     string(current.Role),
			"to_role":       string(role),
			"from_position": current.Position,
			"to_position":   position,
		}, actorID)
		return err
	})
	if err != nil {
		uc.logRejection(ctx, "change member rejected", membership, err)
		return nil, err
	}

	uc.log(ctx).Info("member changed",
		zap.String("project_id", next.ProjectID),
		zap.String("user_id", next.UserID),
		zap.String("role", string(next.Role)))
	return next, nil
}

// lockCurrent locks the project and re-reads the membership under that lock.
// A row that was ended or replaced since the caller read it is reported as
// not found.
func (uc *UseCase) lockCurrent(ctx context.Context, membership domain.Membership) (*domain.Project, *domain.Membership, error) {
	project, err := uc.projects.LockByID(ctx, membership.ProjectID)
	if err != nil {
		return nil, nil, err
	}
	current, err := uc.members.GetActive(ctx, membership.ProjectID, membership.UserID)
	if err != nil {
		return nil, nil, err
	}
	if membership.ID != "" && current.ID != membership.ID {
		return nil, nil, domain.ErrMembershipNotFound
	}
	return project, current, nil
}

func (uc *UseCase) ensureAnotherLeader(ctx context.Context, leader *domain.Membership) error {
	leaders, err := uc.members.LockActiveLeaders(ctx, leader.ProjectID)
	if err != nil {
		return err
	}
	if len(leaders) <= 1 {
		return domain.ErrLastLeader
	}
	return nil
}

func (uc *UseCase) logRejection(ctx context.Context, msg string, membership domain.Membership, err error) {
	fields := []zap.Field{
		zap.String("project_id", membership.ProjectID),
		zap.String("user_id", membership.UserID),
		zap.Error(err),
	}
	if domain.IsDomainError(err, domain.ErrCodeStorage) {
		uc.log(ctx).Error(msg, fields...)
		return
	}
	uc.log(ctx).Warn(msg, fields...)
}

func (uc *UseCase) log(ctx context.Context) *zap.Logger {
	return logger.WithRequestID(ctx, uc.logger)
}
