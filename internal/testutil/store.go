package testutil

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
	"github.com/wafflestudio/waffice/repository/boltdb"
)

// NewStore opens a Bolt store in a per-test directory and closes it on
// cleanup.
func NewStore(t testing.TB) *boltdb.Store {
	t.Helper()
	store, err := boltdb.Open(filepath.Join(t.TempDir(), "waffice.db"))
	if err != nil {
		t.Fatalf("open bolt store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close bolt store: %v", err)
		}
	})
	return store
}

// SeedUser stores a user with the given qualification.
func SeedUser(t testing.TB, store repository.Store, name string, q domain.Qualification, admin bool) *domain.User {
	t.Helper()
	user := &domain.User{
		Email:         fmt.Sprintf("%s@waffle.test", name),
		Name:          name,
		Qualification: q,
		IsAdmin:       admin,
	}
	if err := store.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user %s: %v", name, err)
	}
	return user
}

// SeedProject stores a bare project with no members.
func SeedProject(t testing.TB, store repository.Store, name string) *domain.Project {
	t.Helper()
	project := &domain.Project{
		Name:      name,
		Status:    domain.ProjectStatusActive,
		StartDate: domain.DateOf(time.Now()),
	}
	if err := store.Projects.Create(context.Background(), project); err != nil {
		t.Fatalf("seed project %s: %v", name, err)
	}
	return project
}

// Clock is a settable time source safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
