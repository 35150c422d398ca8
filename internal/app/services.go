package app

import (
	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/internal/pagination"
	"github.com/wafflestudio/waffice/repository"
	auditUC "github.com/wafflestudio/waffice/usecase/audit"
	"github.com/wafflestudio/waffice/usecase/authz"
	identityUC "github.com/wafflestudio/waffice/usecase/identity"
	memberUC "github.com/wafflestudio/waffice/usecase/member"
	projectUC "github.com/wafflestudio/waffice/usecase/project"
	userUC "github.com/wafflestudio/waffice/usecase/user"
)

// Services is the full set of use cases over one store.
type Services struct {
	Audit    *auditUC.UseCase
	Members  *memberUC.UseCase
	Projects *projectUC.UseCase
	Users    *userUC.UseCase
	Identity *identityUC.Resolver
	Gate     *authz.Gate
}

// NewServices wires use cases. cache may be nil.
func NewServices(store repository.Store, cache repository.IdentityCache, pages pagination.PageSizeConfig, logger *zap.Logger) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}

	audit := auditUC.New(store.Audit, logger.Named("audit"))
	members := memberUC.New(store.Tx, store.Projects, store.Memberships, store.Users, audit, logger.Named("member"))
	projects := projectUC.New(store.Tx, store.Projects, store.Memberships, store.Users, members, pages, logger.Named("project"))
	identity := identityUC.New(store.Users, cache, logger.Named("identity"))
	users := userUC.New(store.Tx, store.Users, audit, identity, pages, logger.Named("user"))

	return &Services{
		Audit:    audit,
		Members:  members,
		Projects: projects,
		Users:    users,
		Identity: identity,
		Gate:     authz.New(members, projects),
	}
}
