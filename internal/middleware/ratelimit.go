package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	redislib "github.com/redis/go-redis/v9"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/wafflestudio/waffice/pkg/httpcontext"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed    bool
	Count      int
	RetryAfter time.Duration
}

// Limiter counts hits for key inside a fixed window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) Decision
}

type redisLimiter struct {
	client  redislib.Cmdable
	prefix  string
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisLimiter returns a fixed-window limiter. Redis failures allow the
// request through.
func NewRedisLimiter(client redislib.Cmdable, logger *zap.Logger) Limiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &redisLimiter{
		client:  client,
		prefix:  "waffice:ratelimit:",
		timeout: 250 * time.Millisecond,
		logger:  logger,
	}
}

func (l *redisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	redisKey := l.prefix + key
	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		l.logger.Warn("rate limiter incr failed", zap.Error(err))
		return Decision{Allowed: true}
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, window).Err(); err != nil {
			l.logger.Warn("rate limiter expire failed", zap.Error(err))
		}
	}
	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return Decision{
		Allowed:    int(count) <= limit,
		Count:      int(count),
		RetryAfter: ttl,
	}
}

// RateLimit caps mutating requests per principal. Reads pass untouched. It
// must run after Identity.
func RateLimit(limiter Limiter, limit int, window time.Duration) Middleware {
	return func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		if limiter == nil || limit <= 0 {
			return next
		}
		return func(ctx *fasthttp.RequestCtx) {
			if !isMutation(ctx) {
				next(ctx)
				return
			}
			key := ctx.RemoteIP().String()
			if principal, ok := httpcontext.PrincipalOf(ctx); ok {
				key = principal.UserID
			}

			decision := limiter.Allow(context.Background(), key, limit, window)
			ctx.Response.Header.Set("X-RateLimit-Limit", strconv.Itoa(limit))
			if !decision.Allowed {
				secs := int(decision.RetryAfter.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				ctx.Response.Header.Set("Retry-After", strconv.Itoa(secs))
				writeError(ctx, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests")
				return
			}
			next(ctx)
		}
	}
}

func isMutation(ctx *fasthttp.RequestCtx) bool {
	return ctx.IsPost() || ctx.IsPatch() || ctx.IsPut() || ctx.IsDelete()
}
