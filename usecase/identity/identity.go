package identity

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/pkg/logger"
	"github.com/wafflestudio/waffice/repository"
	"github.com/wafflestudio/waffice/usecase"
)

// Resolver turns an authenticated user id into a Principal. A cache hit
// skips the store; cache failures degrade to a store read.
type Resolver struct {
	users  repository.UserRepository
	cache  repository.IdentityCache
	logger *zap.Logger
}

// New builds a resolver. cache may be nil.
func New(users repository.UserRepository, cache repository.IdentityCache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{users: users, cache: cache, logger: logger}
}

var _ usecase.IdentityInvalidator = (*Resolver)(nil)

// Resolve returns ErrUnauthorized for unknown or deleted users.
func (r *Resolver) Resolve(ctx context.Context, userID string) (domain.Principal, error) {
	if userID == "" {
		return domain.Principal{}, domain.ErrUnauthorized
	}

	if r.cache != nil {
		principal, err := r.cache.Get(ctx, userID)
		switch {
		case err == nil:
			return *principal, nil
		case !errors.Is(err, domain.ErrIdentityNotCached):
			r.log(ctx).Warn("identity cache read failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	user, err := r.users.GetByID(ctx, userID)
	if errors.Is(err, domain.ErrUserNotFound) {
		return domain.Principal{}, domain.ErrUnauthorized
	}
	if err != nil {
		return domain.Principal{}, err
	}

	principal := user.Principal()
	if r.cache != nil {
		if err := r.cache.Save(ctx, principal); err != nil {
			r.log(ctx).Warn("identity cache write failed", zap.String("user_id", userID), zap.Error(err))
		}
	}
	return principal, nil
}

// Invalidate drops the cached principal. Failures are logged; the entry
// expires on its own.
func (r *Resolver) Invalidate(ctx context.Context, userID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Invalidate(ctx, userID); err != nil {
		r.log(ctx).Warn("identity cache invalidate failed", zap.String("user_id", userID), zap.Error(err))
	}
}

func (r *Resolver) log(ctx context.Context) *zap.Logger {
	return logger.WithRequestID(ctx, r.logger)
}
