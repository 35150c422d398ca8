package httpcontext

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"github.com/wafflestudio/waffice/domain"
	appLogger "github.com/wafflestudio/waffice/pkg/logger"
)

// Key represents a context value key exported for reuse.
type Key string

const (
	KeyRemoteAddr Key = "remote_addr"
	KeyUserAgent  Key = "user_agent"
	KeyPrincipal  Key = "principal"
)

// UserValuePrincipal is the fasthttp user value under which the identity
// middleware stores the resolved domain.Principal.
const UserValuePrincipal = "waffice.principal"

// Adapter converts fasthttp.RequestCtx into a stdlib context with deadlines and metadata.
type Adapter struct {
	timeout time.Duration
}

// NewAdapter constructs a new Adapter using the provided timeout.
func NewAdapter(timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		timeout: timeout,
	}
}

// Attach creates a context with timeout derived from the adapter and enriches
// it with request metadata and the caller's principal.
func (a *Adapter) Attach(ctx *fasthttp.RequestCtx) (context.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.Background(), a.timeout)

	reqID := RequestID(ctx)
	stdCtx = appLogger.ContextWithRequestID(stdCtx, reqID)
	ctx.Response.Header.Set("X-Request-ID", reqID)

	if remoteAddr := ctx.RemoteAddr(); remoteAddr != nil {
		stdCtx = context.WithValue(stdCtx, KeyRemoteAddr, remoteAddr.String())
	}
	if ua := string(ctx.Request.Header.UserAgent()); ua != "" {
		stdCtx = context.WithValue(stdCtx, KeyUserAgent, ua)
	}
	if principal, ok := PrincipalOf(ctx); ok {
		stdCtx = WithPrincipal(stdCtx, principal)
	}

	return stdCtx, cancel
}

// RequestID returns the inbound X-Request-ID or a fresh one. The value is
// memoized on the request so every layer sees the same id.
func RequestID(ctx *fasthttp.RequestCtx) string {
	if ctx == nil {
		return uuid.NewString()
	}
	if id, ok := ctx.UserValue("waffice.request_id").(string); ok {
		return id
	}
	id := strings.TrimSpace(string(ctx.Request.Header.Peek("X-Request-ID")))
	if id == "" {
		id = uuid.NewString()
	}
	ctx.SetUserValue("waffice.request_id", id)
	return id
}

// SetPrincipal stores the resolved caller on the request.
func SetPrincipal(ctx *fasthttp.RequestCtx, principal domain.Principal) {
	ctx.SetUserValue(UserValuePrincipal, principal)
}

// PrincipalOf returns the caller stored by SetPrincipal.
func PrincipalOf(ctx *fasthttp.RequestCtx) (domain.Principal, bool) {
	principal, ok := ctx.UserValue(UserValuePrincipal).(domain.Principal)
	return principal, ok && !principal.IsZero()
}

func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, KeyPrincipal, principal)
}

// PrincipalFrom returns the caller attached to a stdlib context.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	principal, ok := ctx.Value(KeyPrincipal).(domain.Principal)
	return principal, ok && !principal.IsZero()
}
