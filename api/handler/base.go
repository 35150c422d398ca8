package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/api/transport"
	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/pkg/httpcontext"
)

type baseHandler struct {
	adapter *httpcontext.Adapter
	logger  *zap.Logger
}

func newBaseHandler(adapter *httpcontext.Adapter, logger *zap.Logger) baseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return baseHandler{adapter: adapter, logger: logger}
}

func (h baseHandler) requestContext(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	if h.adapter != nil {
		return h.adapter.Attach(ctx)
	}
	stdCtx, cancel := context.WithCancel(context.Background())
	if principal, ok := httpcontext.PrincipalOf(ctx); ok {
		stdCtx = httpcontext.WithPrincipal(stdCtx, principal)
	}
	return stdCtx, cancel
}

// principal returns the caller or writes 401.
func (h baseHandler) principal(ctx *fasthttp.RequestCtx) (domain.Principal, bool) {
	principal, ok := httpcontext.PrincipalOf(ctx)
	if !ok {
		h.respondError(ctx, domain.ErrUnauthorized)
		return domain.Principal{}, false
	}
	return principal, true
}

func (h baseHandler) decode(ctx *fasthttp.RequestCtx, dest interface{}) bool {
	err := json.Unmarshal(ctx.PostBody(), dest)
	if err == nil {
		return true
	}
	var dErr *domain.Error
	if !errors.As(err, &dErr) {
		dErr = domain.ErrInvalidPayload
	}
	h.respondError(ctx, dErr)
	return false
}

func (h baseHandler) pathParam(ctx *fasthttp.RequestCtx, name string) string {
	value, _ := ctx.UserValue(name).(string)
	return value
}

// pageQuery reads cursor and limit query arguments.
func (h baseHandler) pageQuery(ctx *fasthttp.RequestCtx) (*time.Time, int, bool) {
	args := ctx.QueryArgs()
	cursor, ok := transport.DecodeCursor(string(args.Peek("cursor")))
	if !ok {
		h.respondError(ctx, domain.Invalid("invalid cursor"))
		return nil, 0, false
	}
	limit := 0
	if raw := string(args.Peek("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 100 {
			h.respondError(ctx, domain.Invalid("limit must be between 1 and 100"))
			return nil, 0, false
		}
		limit = n
	}
	return cursor, limit, true
}

func (h baseHandler) respondJSON(ctx *fasthttp.RequestCtx, status int, payload transport.Envelope) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(payload)
	ctx.SetBody(body)
}

func (h baseHandler) respondSuccess(ctx *fasthttp.RequestCtx, status int, data interface{}) {
	h.respondJSON(ctx, status, transport.NewSuccess(data, nil))
}

func (h baseHandler) respondPage(ctx *fasthttp.RequestCtx, items interface{}, next *time.Time) {
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(items, transport.PageMeta{
		NextCursor: transport.EncodeCursor(next),
	}))
}

func (h baseHandler) respondError(ctx *fasthttp.RequestCtx, err error) {
	status, code := mapError(err)
	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("request_id", httpcontext.RequestID(ctx)),
			zap.ByteString("path", ctx.Path()),
			zap.Error(err))
		message = "internal error"
	}
	h.respondJSON(ctx, status, transport.NewError(code, message, nil))
}

func mapError(err error) (int, string) {
	switch {
	case domain.IsDomainError(err, domain.ErrCodeLastLeader):
		return http.StatusBadRequest, string(domain.ErrCodeLastLeader)
	case domain.IsDomainError(err, domain.ErrCodeCannotRemoveSelf):
		return http.StatusBadRequest, string(domain.ErrCodeCannotRemoveSelf)
	case domain.IsDomainError(err, domain.ErrCodeNoLeader):
		return http.StatusBadRequest, string(domain.ErrCodeNoLeader)
	case domain.IsDomainError(err, domain.ErrCodeInvalidQualification):
		return http.StatusBadRequest, string(domain.ErrCodeInvalidQualification)
	case domain.IsDomainError(err, domain.ErrCodeUnauthorized):
		return http.StatusUnauthorized, string(domain.ErrCodeUnauthorized)
	case domain.IsDomainError(err, domain.ErrCodeForbidden):
		return http.StatusForbidden, string(domain.ErrCodeForbidden)
	case domain.IsDomainError(err, domain.ErrCodeInvalid):
		return http.StatusBadRequest, string(domain.ErrCodeInvalid)
	case domain.IsDomainError(err, domain.ErrCodeNotFound):
		return http.StatusNotFound, string(domain.ErrCodeNotFound)
	case domain.IsDomainError(err, domain.ErrCodeConflict):
		return http.StatusConflict, string(domain.ErrCodeConflict)
	default:
		return http.StatusInternalServerError, string(domain.ErrCodeInternal)
	}
}
