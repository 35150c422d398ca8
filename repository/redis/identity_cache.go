package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
)

type identityCache struct {
	client *redislib.Client
	prefix string
	ttl    time.Duration
}

// NewIdentityCache creates a Redis-backed principal cache.
func NewIdentityCache(client *redislib.Client, ttl time.Duration) repository.IdentityCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &identityCache{
		client: client,
		prefix: "principal:",
		ttl:    ttl,
	}
}

func (c *identityCache) Get(ctx context.Context, userID string) (*domain.Principal, error) {
	result, err := c.client.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return nil, domain.ErrIdentityNotCached
		}
		return nil, err
	}

	var principal domain.Principal
	if err := json.Unmarshal([]byte(result), &principal); err != nil {
		return nil, err
	}
	return &principal, nil
}

func (c *identityCache) Save(ctx context.Context, principal domain.Principal) error {
	if principal.IsZero() {
		return domain.ErrInvalidPayload
	}

	payload, err := json.Marshal(principal)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(principal.UserID), payload, c.ttl).Err()
}

func (c *identityCache) Invalidate(ctx context.Context, userID string) error {
	return c.client.Del(ctx, c.key(userID)).Err()
}

func (c *identityCache) key(userID string) string {
	return fmt.Sprintf("%s%s", c.prefix, userID)
}
