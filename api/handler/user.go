package handler

import (
	"context"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/api/transport"
	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/pkg/httpcontext"
	"github.com/wafflestudio/waffice/usecase/authz"
	userUC "github.com/wafflestudio/waffice/usecase/user"
)

// HistoryReader lists a user's audit entries.
type HistoryReader interface {
	ListByUser(ctx context.Context, userID string) ([]domain.AuditEntry, error)
}

// UserProjects lists the projects a user belongs to.
type UserProjects interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Project, error)
}

type UserHandler struct {
	baseHandler
	users    *userUC.UseCase
	history  HistoryReader
	projects UserProjects
}

func NewUserHandler(users *userUC.UseCase, history HistoryReader, projects UserProjects, adapter *httpcontext.Adapter, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		baseHandler: newBaseHandler(adapter, logger),
		users:       users,
		history:     history,
		projects:    projects,
	}
}

// Register creates a pending account. Public.
// @Router /api/v1/users [post]
func (h *UserHandler) Register(ctx *fasthttp.RequestCtx) {
	var req transport.RegisterRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.users.Register(stdCtx, req.Email, req.Name)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, user)
}

// @Router /api/v1/users/me [get]
func (h *UserHandler) Me(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.users.Get(stdCtx, principal.UserID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

// @Router /api/v1/users/me [patch]
func (h *UserHandler) UpdateMe(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	if err := authz.RequireAtLeast(principal, domain.QualificationAssociate); err != nil {
		h.respondError(ctx, err)
		return
	}

	var req transport.ProfileUpdateRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.users.UpdateProfile(stdCtx, principal.UserID, req.Patch())
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

// @Router /api/v1/users/me/history [get]
func (h *UserHandler) MyHistory(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	h.listHistory(ctx, principal.UserID)
}

// @Router /api/v1/users/me/projects [get]
func (h *UserHandler) MyProjects(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	projects, err := h.projects.ListByUser(stdCtx, principal.UserID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, projects)
}

// @Router /api/v1/users [get]
func (h *UserHandler) List(ctx *fasthttp.RequestCtx) {
	if !h.requireAdmin(ctx) {
		return
	}
	cursor, limit, ok := h.pageQuery(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	page, err := h.users.List(stdCtx, userUC.ListParams{Cursor: cursor, Limit: limit})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondPage(ctx, page.Items, page.NextCursor)
}

// @Router /api/v1/users/pending [get]
func (h *UserHandler) Pending(ctx *fasthttp.RequestCtx) {
	if !h.requireAdmin(ctx) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	users, err := h.users.ListPending(stdCtx)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, users)
}

// @Router /api/v1/users/{id} [get]
func (h *UserHandler) Get(ctx *fasthttp.RequestCtx) {
	if !h.requireAdmin(ctx) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.users.Get(stdCtx, h.pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

// @Router /api/v1/users/{id} [patch]
func (h *UserHandler) Update(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	if err := authz.RequireAdmin(principal); err != nil {
		h.respondError(ctx, err)
		return
	}

	var req transport.UserUpdateRequest
	if !h.decode(ctx, &req) {
		return
	}
	update, err := req.Update()
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.users.Update(stdCtx, h.pathParam(ctx, "id"), update, principal.UserID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

// @Router /api/v1/users/{id} [delete]
func (h *UserHandler) Delete(ctx *fasthttp.RequestCtx) {
	if !h.requireAdmin(ctx) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.users.Delete(stdCtx, h.pathParam(ctx, "id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// @Router /api/v1/users/{id}/approve [post]
func (h *UserHandler) Approve(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	if err := authz.RequireAdmin(principal); err != nil {
		h.respondError(ctx, err)
		return
	}

	var req transport.ApproveRequest
	if !h.decode(ctx, &req) {
		return
	}
	qualification, err := domain.ParseQualification(req.Qualification)
	if err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	user, err := h.users.Approve(stdCtx, h.pathParam(ctx, "id"), qualification, principal.UserID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, user)
}

// @Router /api/v1/users/{id}/history [get]
func (h *UserHandler) History(ctx *fasthttp.RequestCtx) {
	if !h.requireAdmin(ctx) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	id := h.pathParam(ctx, "id")
	if _, err := h.users.Get(stdCtx, id); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.listHistory(ctx, id)
}

func (h *UserHandler) listHistory(ctx *fasthttp.RequestCtx, userID string) {
	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	entries, err := h.history.ListByUser(stdCtx, userID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, entries)
}

func (h *UserHandler) requireAdmin(ctx *fasthttp.RequestCtx) bool {
	principal, ok := h.principal(ctx)
	if !ok {
		return false
	}
	if err := authz.RequireAdmin(principal); err != nil {
		h.respondError(ctx, err)
		return false
	}
	return true
}
