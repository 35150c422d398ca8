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
	memberUC "github.com/wafflestudio/waffice/usecase/member"
	projectUC "github.com/wafflestudio/waffice/usecase/project"
)

type ProjectHandler struct {
	baseHandler
	projects *projectUC.UseCase
	members  *memberUC.UseCase
	gate     *authz.Gate
}

func NewProjectHandler(projects *projectUC.UseCase, members *memberUC.UseCase, gate *authz.Gate, adapter *httpcontext.Adapter, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{
		baseHandler: newBaseHandler(adapter, logger),
		projects:    projects,
		members:     members,
		gate:        gate,
	}
}

// @Router /api/v1/projects [get]
func (h *ProjectHandler) List(ctx *fasthttp.RequestCtx) {
	if _, ok := h.requireLevel(ctx, domain.QualificationRegular); !ok {
		return
	}
	cursor, limit, ok := h.pageQuery(ctx)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	page, err := h.projects.List(stdCtx, projectUC.ListParams{
		Cursor: cursor,
		Limit:  limit,
		Status: domain.ProjectStatus(ctx.QueryArgs().Peek("status")),
	})
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondPage(ctx, page.Items, page.NextCursor)
}

// Create stores a project with its initial members. Admin only.
// @Router /api/v1/projects [post]
func (h *ProjectHandler) Create(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	if err := authz.RequireAdmin(principal); err != nil {
		h.respondError(ctx, err)
		return
	}

	var req transport.ProjectCreateRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	project, err := h.projects.Create(stdCtx, req.NewProject(), principal.UserID, req.LeaderPosition)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondDetail(stdCtx, ctx, http.StatusCreated, project.ID)
}

// @Router /api/v1/projects/{id} [get]
func (h *ProjectHandler) Get(ctx *fasthttp.RequestCtx) {
	if _, ok := h.requireLevel(ctx, domain.QualificationRegular); !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	h.respondDetail(stdCtx, ctx, http.StatusOK, h.pathParam(ctx, "id"))
}

// @Router /api/v1/projects/{id} [patch]
func (h *ProjectHandler) Update(ctx *fasthttp.RequestCtx) {
	principal, ok := h.requireLevel(ctx, domain.QualificationRegular)
	if !ok {
		return
	}

	var req transport.ProjectUpdateRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	project, err := h.gate.AuthorizeProject(stdCtx, principal, h.pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if _, err := h.projects.Update(stdCtx, project.ID, req.Patch()); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondDetail(stdCtx, ctx, http.StatusOK, project.ID)
}

// @Router /api/v1/projects/{id} [delete]
func (h *ProjectHandler) Delete(ctx *fasthttp.RequestCtx) {
	principal, ok := h.principal(ctx)
	if !ok {
		return
	}
	if err := authz.RequireAdmin(principal); err != nil {
		h.respondError(ctx, err)
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	if err := h.projects.Delete(stdCtx, h.pathParam(ctx, "id")); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, nil)
}

// AddMember is idempotent: an existing active member is left unchanged.
// @Router /api/v1/projects/{id}/members [post]
func (h *ProjectHandler) AddMember(ctx *fasthttp.RequestCtx) {
	principal, ok := h.requireLevel(ctx, domain.QualificationRegular)
	if !ok {
		return
	}

	var req transport.MemberRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	project, err := h.gate.AuthorizeProject(stdCtx, principal, h.pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	if _, err := h.members.Add(stdCtx, req.Input(project.ID), principal.UserID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondDetail(stdCtx, ctx, http.StatusOK, project.ID)
}

// @Router /api/v1/projects/{id}/members/{user_id} [patch]
func (h *ProjectHandler) UpdateMember(ctx *fasthttp.RequestCtx) {
	principal, ok := h.requireLevel(ctx, domain.QualificationRegular)
	if !ok {
		return
	}

	var req transport.MemberUpdateRequest
	if !h.decode(ctx, &req) {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	membership, ok := h.authorizedMember(stdCtx, ctx, principal)
	if !ok {
		return
	}
	if _, err := h.members.Change(stdCtx, *membership, req.Change(), principal.UserID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondDetail(stdCtx, ctx, http.StatusOK, membership.ProjectID)
}

// @Router /api/v1/projects/{id}/members/{user_id} [delete]
func (h *ProjectHandler) RemoveMember(ctx *fasthttp.RequestCtx) {
	principal, ok := h.requireLevel(ctx, domain.QualificationRegular)
	if !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	membership, ok := h.authorizedMember(stdCtx, ctx, principal)
	if !ok {
		return
	}
	if err := h.members.Remove(stdCtx, *membership, principal.UserID); err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondDetail(stdCtx, ctx, http.StatusOK, membership.ProjectID)
}

// @Router /api/v1/projects/{id}/members/{user_id}/history [get]
func (h *ProjectHandler) MemberHistory(ctx *fasthttp.RequestCtx) {
	if _, ok := h.requireLevel(ctx, domain.QualificationRegular); !ok {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	projectID := h.pathParam(ctx, "id")
	if _, err := h.projects.Get(stdCtx, projectID); err != nil {
		h.respondError(ctx, err)
		return
	}
	rows, err := h.members.History(stdCtx, projectID, h.pathParam(ctx, "user_id"))
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusOK, rows)
}

func (h *ProjectHandler) authorizedMember(stdCtx context.Context, ctx *fasthttp.RequestCtx, principal domain.Principal) (*domain.Membership, bool) {
	project, err := h.gate.AuthorizeProject(stdCtx, principal, h.pathParam(ctx, "id"))
	if err != nil {
		h.respondError(ctx, err)
		return nil, false
	}
	membership, err := h.members.GetActive(stdCtx, project.ID, h.pathParam(ctx, "user_id"))
	if err != nil {
		h.respondError(ctx, err)
		return nil, false
	}
	return membership, true
}

func (h *ProjectHandler) requireLevel(ctx *fasthttp.RequestCtx, min domain.Qualification) (domain.Principal, bool) {
	principal, ok := h.principal(ctx)
	if !ok {
		return domain.Principal{}, false
	}
	if err := authz.RequireAtLeast(principal, min); err != nil {
		h.respondError(ctx, err)
		return domain.Principal{}, false
	}
	return principal, true
}

func (h *ProjectHandler) respondDetail(stdCtx context.Context, ctx *fasthttp.RequestCtx, status int, projectID string) {
	detail, err := h.projects.GetWithMembers(stdCtx, projectID)
	if err != nil {
		h.respondError(ctx, err)
		return
	}
	h.respondSuccess(ctx, status, detail)
}
