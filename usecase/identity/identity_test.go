package identity

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/internal/testutil"
)

type fakeCache struct {
	entries     map[string]domain.Principal
	getErr      error
	saveErr     error
	saves       int
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]domain.Principal)}
}

func (c *fakeCache) Get(_ context.Context, userID string) (*domain.Principal, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	p, ok := c.entries[userID]
	if !ok {
		return nil, domain.ErrIdentityNotCached
	}
	return &p, nil
}

func (c *fakeCache) Save(_ context.Context, p domain.Principal) error {
	c.saves++
	if c.saveErr != nil {
		return c.saveErr
	}
	c.entries[p.UserID] = p
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, userID string) error {
	c.invalidated = append(c.invalidated, userID)
	delete(c.entries, userID)
	return nil
}

func TestResolveFillsCacheOnMiss(t *testing.T) {
	store := testutil.NewStore(t).Repositories()
	user := testutil.SeedUser(t, store, "u1", domain.QualificationRegular, true)
	cache := newFakeCache()
	r := New(store.Users, cache, zaptest.NewLogger(t))
	ctx := context.Background()

	p, err := r.Resolve(ctx, user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	want := domain.Principal{UserID: user.ID, Qualification: domain.QualificationRegular, IsAdmin: true}
	if p != want {
		t.Fatalf("got %+v, want %+v", p, want)
	}
	if cache.saves != 1 || cache.entries[user.ID] != want {
		t.Fatalf("expected principal cached once, saves=%d", cache.saves)
	}

	if _, err := r.Resolve(ctx, user.ID); err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if cache.saves != 1 {
		t.Fatalf("cache hit must not write again, saves=%d", cache.saves)
	}
}

func TestResolvePrefersCache(t *testing.T) {
	cache := newFakeCache()
	cached := domain.Principal{UserID: "cached", Qualification: domain.QualificationActive}
	cache.entries["cached"] = cached
	store := testutil.NewStore(t).Repositories()
	r := New(store.Users, cache, zaptest.NewLogger(t))

	p, err := r.Resolve(context.Background(), "cached")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p != cached {
		t.Fatalf("got %+v, want %+v", p, cached)
	}
}

func TestResolveDegradesOnCacheFailure(t *testing.T) {
	store := testutil.NewStore(t).Repositories()
	user := testutil.SeedUser(t, store, "u1", domain.QualificationAssociate, false)
	cache := newFakeCache()
	cache.getErr = errors.New("redis: connection refused")
	cache.saveErr = errors.New("redis: connection refused")
	r := New(store.Users, cache, zaptest.NewLogger(t))

	p, err := r.Resolve(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if p.UserID != user.ID || p.Qualification != domain.QualificationAssociate {
		t.Fatalf("unexpected principal %+v", p)
	}
}

func TestResolveUnknownOrDeletedUser(t *testing.T) {
	store := testutil.NewStore(t).Repositories()
	user := testutil.SeedUser(t, store, "u1", domain.QualificationRegular, false)
	r := New(store.Users, nil, zaptest.NewLogger(t))
	ctx := context.Background()

	for _, id := range []string{"", "ghost"} {
		if _, err := r.Resolve(ctx, id); !errors.Is(err, domain.ErrUnauthorized) {
			t.Fatalf("resolve %q: expected unauthorized, got %v", id, err)
		}
	}

	if err := store.Users.SoftDelete(ctx, user.ID, user.CreatedAt); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Resolve(ctx, user.ID); !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected unauthorized for deleted user, got %v", err)
	}
}

func TestInvalidate(t *testing.T) {
	cache := newFakeCache()
	cache.entries["u1"] = domain.Principal{UserID: "u1"}
	r := New(nil, cache, zaptest.NewLogger(t))

	r.Invalidate(context.Background(), "u1")
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "u1" {
		t.Fatalf("expected u1 invalidated, got %v", cache.invalidated)
	}

	New(nil, nil, nil).Invalidate(context.Background(), "u1")
}
