package user

import (
	"context"
	"net/mail"
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

var DefaultPageSize = pagination.PageSizeConfig{Default: 20, Max: 100}

// ListParams selects one page of users, newest first.
type ListParams struct {
	Cursor *time.Time
	Limit  int
}

type UseCase struct {
	tx         repository.Transactor
	users      repository.UserRepository
	audit      usecase.AuditLogger
	identities usecase.IdentityInvalidator
	pages      pagination.PageSizeConfig
	clock      func() time.Time
	logger     *zap.Logger
}

func New(
	tx repository.Transactor,
	users repository.UserRepository,
	audit usecase.AuditLogger,
	identities usecase.IdentityInvalidator,
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
		tx:         tx,
		users:      users,
		audit:      audit,
		identities: identities,
		pages:      pages,
		clock:      time.Now,
		logger:     logger,
	}
}

// Register creates a pending, non-admin user.
func (uc *UseCase) Register(ctx context.Context, email, name string) (*domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.Invalid("name is required")
	}

	user := &domain.User{
		ID:            uuid.NewString(),
		Email:         email,
		Name:          name,
		Qualification: domain.QualificationPending,
	}
	if err := uc.users.Create(ctx, user); err != nil {
		return nil, err
	}

	uc.log(ctx).Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

func (uc *UseCase) Get(ctx context.Context, id string) (*domain.User, error) {
	return uc.users.GetByID(ctx, id)
}

func (uc *UseCase) List(ctx context.Context, params ListParams) (pagination.Page[domain.User], error) {
	limit := pagination.ClampPageSize(params.Limit, uc.pages)
	rows, err := uc.users.List(ctx, repository.UserFilter{Before: params.Cursor, Limit: limit + 1})
	if err != nil {
		return pagination.Page[domain.User]{}, err
	}
	return pagination.Trim(rows, limit, func(u domain.User) time.Time { return u.CreatedAt }), nil
}

// ListPending returns every live user still awaiting approval, newest first.
func (uc *UseCase) ListPending(ctx context.Context) ([]domain.User, error) {
	var pending []domain.User
	filter := repository.UserFilter{Qualification: domain.QualificationPending, Limit: 1000}
	for {
		rows, err := uc.users.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		pending = append(pending, rows...)
		if len(rows) < filter.Limit {
			break
		}
		before := rows[len(rows)-1].CreatedAt
		filter.Before = &before
	}
	if pending == nil {
		pending = []domain.User{}
	}
	return pending, nil
}

// UpdateProfile applies self-service changes. Qualification and admin flag
// are out of reach here.
func (uc *UseCase) UpdateProfile(ctx context.Context, id string, patch domain.ProfilePatch) (*domain.User, error) {
	if err := normalizeProfile(&patch); err != nil {
		return nil, err
	}

	var user *domain.User
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = uc.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !patch.Apply(user) {
			return nil
		}
		return uc.users.Update(ctx, user)
	})
	if err != nil {
		return nil, err
	}
	uc.invalidate(ctx, id)
	return user, nil
}

// Approve moves a user to qualification and records the change. Approving
// to pending fails with ErrInvalidQualification.
func (uc *UseCase) Approve(ctx context.Context, id string, qualification domain.Qualification, actorID string) (*domain.User, error) {
	if !qualification.Valid() {
		return nil, domain.Invalid("unknown qualification %q", qualification)
	}
	if qualification == domain.QualificationPending {
		return nil, domain.ErrInvalidQualification
	}

	var user *domain.User
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = uc.users.GetByID(ctx, id)
		if err != nil {
			return err
		}
		from := user.Qualification
		user.Qualification = qualification
		if err := uc.users.Update(ctx, user); err != nil {
			return err
		}
		_, err = uc.audit.Log(ctx, user.ID, domain.AuditQualificationChanged, map[string]any{
			"from": string(from),
			"to":   string(qualification),
		}, actorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	uc.invalidate(ctx, id)
	uc.log(ctx).Info("user approved",
		zap.String("user_id", id),
		zap.String("qualification", string(qualification)))
	return user, nil
}

// Update applies an administrative change. A qualification that actually
// changes is logged as qualification_changed; a flipped admin flag as
// admin_granted or admin_revoked.
func (uc *UseCase) Update(ctx context.Context, id string, update domain.UserUpdate, actorID string) (*domain.User, error) {
	if q := update.Qualification; q != nil {
		if !q.Valid() {
			return nil, domain.Invalid("unknown qualification %q", *q)
		}
		if *q == domain.QualificationPending {
			return nil, domain.ErrInvalidQualification
		}
	}
	if err := normalizeProfile(&update.ProfilePatch); err != nil {
		return nil, err
	}

	var user *domain.User
	err := uc.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		user, err = uc.users.GetByID(ctx, id)
		if err != nil {
			return err
		}

		type event struct {
			action  domain.AuditAction
			payload map[string]any
		}
		var events []event

		changed := update.ProfilePatch.Apply(user)
		if q := update.Qualification; q != nil && *q != user.Qualification {
			events = append(events, event{domain.AuditQualificationChanged, map[string]any{
				"from": string(user.Qualification),
				"to":   string(*q),
			}})
			user.Qualification = *q
			changed = true
		}
		if a := update.IsAdmin; a != nil && *a != user.IsAdmin {
			action := domain.AuditAdminRevoked
			if *a {
				action = domain.AuditAdminGranted
			}
			events = append(events, event{action, map[string]any{}})
			user.IsAdmin = *a
			changed = true
		}
		if !changed {
			return nil
		}

		if err := uc.users.Update(ctx, user); err != nil {
			return err
		}
		for _, e := range events {
			if _, err := uc.audit.Log(ctx, user.ID, e.action, e.payload, actorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.invalidate(ctx, id)
	uc.log(ctx).Info("user updated", zap.String("user_id", id))
	return user, nil
}

// Delete soft-deletes the user. History and membership rows remain.
func (uc *UseCase) Delete(ctx context.Context, id string) error {
	if err := uc.users.SoftDelete(ctx, id, uc.clock()); err != nil {
		return err
	}
	uc.invalidate(ctx, id)
	uc.log(ctx).Info("user deleted", zap.String("user_id", id))
	return nil
}

func (uc *UseCase) invalidate(ctx context.Context, id string) {
	if uc.identities != nil {
		uc.identities.Invalidate(ctx, id)
	}
}

func (uc *UseCase) log(ctx context.Context) *zap.Logger {
	return logger.WithRequestID(ctx, uc.logger)
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", domain.Invalid("invalid email address %q", raw)
	}
	return email, nil
}

func normalizeProfile(patch *domain.ProfilePatch) error {
	if patch.Email != nil {
		email, err := normalizeEmail(*patch.Email)
		if err != nil {
			return err
		}
		patch.Email = &email
	}
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return domain.Invalid("name must not be empty")
		}
		patch.Name = &name
	}
	return nil
}
