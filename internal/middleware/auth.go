package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/api/transport"
	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/pkg/httpcontext"
)

// Middleware wraps a fasthttp handler.
type Middleware func(fasthttp.RequestHandler) fasthttp.RequestHandler

// Chain applies middlewares so the first one runs outermost.
func Chain(h fasthttp.RequestHandler, mws ...Middleware) fasthttp.RequestHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

const userValueSubject = "waffice.subject"

var (
	errInvalidToken   = errors.New("invalid token")
	errMissingSubject = errors.New("token has no user_id claim")
)

// JWTAuth verifies an HMAC-signed bearer token and stores its user_id claim
// on the request for Identity.
func JWTAuth(secret string, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	key := []byte(secret)
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			tokenString := extractToken(ctx)
			if tokenString == "" {
				unauthorized(ctx, "missing bearer token")
				return
			}

			userID, err := ParseToken(tokenString, key)
			if err != nil {
				logger.Warn("invalid jwt token",
					zap.String("request_id", httpcontext.RequestID(ctx)),
					zap.Error(err))
				unauthorized(ctx, "could not validate credentials")
				return
			}

			ctx.SetUserValue(userValueSubject, userID)
			next(ctx)
		}
	}
}

// ParseToken validates tokenString and returns its user_id claim.
func ParseToken(tokenString string, key []byte) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", errInvalidToken
	}
	switch v := claims["user_id"].(type) {
	case string:
		if v != "" {
			return v, nil
		}
	case float64:
		return fmt.Sprintf("%.0f", v), nil
	}
	return "", errMissingSubject
}

// IssueToken signs an HS256 token for userID. Used by tooling and tests.
func IssueToken(userID string, key []byte, ttl time.Duration, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// PrincipalResolver maps an authenticated user id to a Principal.
type PrincipalResolver interface {
	Resolve(ctx context.Context, userID string) (domain.Principal, error)
}

// Identity resolves the token subject to a Principal and stores it on the
// request. It must run after JWTAuth.
func Identity(resolver PrincipalResolver, timeout time.Duration, logger *zap.Logger) Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return func(ctx *fasthttp.RequestCtx) {
			userID, _ := ctx.UserValue(userValueSubject).(string)

			stdCtx, cancel := context.WithTimeout(context.Background(), timeout)
			principal, err := resolver.Resolve(stdCtx, userID)
			cancel()
			if err != nil {
				if domain.IsDomainError(err, domain.ErrCodeUnauthorized) {
					unauthorized(ctx, "could not validate credentials")
					return
				}
				logger.Error("resolve principal failed",
					zap.String("request_id", httpcontext.RequestID(ctx)),
					zap.String("user_id", userID),
					zap.Error(err))
				writeError(ctx, http.StatusInternalServerError, string(domain.ErrCodeInternal), "internal error")
				return
			}

			httpcontext.SetPrincipal(ctx, principal)
			next(ctx)
		}
	}
}

func extractToken(ctx *fasthttp.RequestCtx) string {
	header := strings.TrimSpace(string(ctx.Request.Header.Peek("Authorization")))
	if header == "" {
		return ""
	}
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}

func unauthorized(ctx *fasthttp.RequestCtx, msg string) {
	ctx.Response.Header.Set("WWW-Authenticate", "Bearer")
	writeError(ctx, http.StatusUnauthorized, string(domain.ErrCodeUnauthorized), msg)
}

func writeError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	ctx.Response.Header.SetContentType("application/json")
	ctx.SetStatusCode(status)
	ctx.SetBodyString(transport.NewError(code, msg, nil).String())
}
