package boltdb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	errBoom := errors.New("boom")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		user := &domain.User{Email: "a@waffle.test", Name: "a", Qualification: domain.QualificationPending}
		if err := store.Users().Create(ctx, user); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}

	if _, err := store.Users().GetByEmail(ctx, "a@waffle.test"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected rolled back user to be absent, got %v", err)
	}
}

func TestWithinTxAbortsOnCancelledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())

	err := store.WithinTx(ctx, func(txCtx context.Context) error {
		user := &domain.User{Email: "b@waffle.test", Name: "b", Qualification: domain.QualificationPending}
		if err := store.Users().Create(txCtx, user); err != nil {
			return err
		}
		cancel()
		return nil
	})
	if !domain.IsDomainError(err, domain.ErrCodeStorage) {
		t.Fatalf("expected STORAGE error, got %v", err)
	}
	if _, err := store.Users().GetByEmail(context.Background(), "b@waffle.test"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected no commit, got %v", err)
	}
}

func TestNestedWithinTxJoinsOuter(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	errOuter := errors.New("outer failed")

	err := store.WithinTx(ctx, func(ctx context.Context) error {
		inner := store.WithinTx(ctx, func(ctx context.Context) error {
			return store.Projects().Create(ctx, &domain.Project{Name: "p", Status: domain.ProjectStatusActive})
		})
		if inner != nil {
			return inner
		}
		return errOuter
	})
	if !errors.Is(err, errOuter) {
		t.Fatalf("expected outer error, got %v", err)
	}

	projects, err := store.Projects().List(ctx, projectFilter(10))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(projects) != 0 {
		t.Fatalf("inner write should roll back with outer, got %d projects", len(projects))
	}
}

func TestCreationStampsStrictlyIncrease(t *testing.T) {
	store := openTestStore(t)
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	var last time.Time
	for i := 0; i < 5; i++ {
		p := &domain.Project{Name: "p", Status: domain.ProjectStatusActive}
		if err := store.Projects().Create(context.Background(), p); err != nil {
			t.Fatalf("create: %v", err)
		}
		if !p.CreatedAt.After(last) {
			t.Fatalf("stamp %v not after %v", p.CreatedAt, last)
		}
		last = p.CreatedAt
	}
}

func TestMembershipCreateRejectsSecondActiveRow(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	members := store.Memberships()

	first := &domain.Membership{ProjectID: "p1", UserID: "u1", Role: domain.RoleLeader}
	if err := members.Create(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &domain.Membership{ProjectID: "p1", UserID: "u1", Role: domain.RoleMember}
	if err := members.Create(ctx, dup); !domain.IsDomainError(err, domain.ErrCodeConflict) {
		t.Fatalf("expected CONFLICT, got %v", err)
	}

	if err := members.End(ctx, first.ID, time.Now()); err != nil {
		t.Fatalf("end: %v", err)
	}
	again := &domain.Membership{ProjectID: "p1", UserID: "u1", Role: domain.RoleMember, PreviousID: first.ID}
	if err := members.Create(ctx, again); err != nil {
		t.Fatalf("create after end: %v", err)
	}

	history, err := members.History(ctx, "p1", "u1")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].ID != first.ID || history[1].ID != again.ID {
		t.Fatalf("unexpected history %+v", history)
	}
}

func TestAuditListsNewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	audit := store.Audit()

	for _, action := range []domain.AuditAction{domain.AuditProjectJoined, domain.AuditProjectRoleChanged, domain.AuditProjectLeft} {
		if err := audit.Append(ctx, &domain.AuditEntry{UserID: "u1", Action: action}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := audit.Append(ctx, &domain.AuditEntry{UserID: "u2", Action: domain.AuditAdminGranted}); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := audit.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Action != domain.AuditProjectLeft || entries[2].Action != domain.AuditProjectJoined {
		t.Fatalf("expected newest first, got %v then %v", entries[0].Action, entries[2].Action)
	}
}

func TestSoftDeletedRowsAreHidden(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	user := &domain.User{Email: "c@waffle.test", Name: "c", Qualification: domain.QualificationRegular}
	if err := store.Users().Create(ctx, user); err != nil {
		t.Fatalf("create user: %v", err)
	}
	project := &domain.Project{Name: "p", Status: domain.ProjectStatusActive}
	if err := store.Projects().Create(ctx, project); err != nil {
		t.Fatalf("create project: %v", err)
	}
	if err := store.Memberships().Create(ctx, &domain.Membership{ProjectID: project.ID, UserID: user.ID, Role: domain.RoleLeader}); err != nil {
		t.Fatalf("create membership: %v", err)
	}

	if err := store.Projects().SoftDelete(ctx, project.ID, time.Now()); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := store.Projects().GetByID(ctx, project.ID); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	mine, err := store.Projects().ListByUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("expected deleted project excluded, got %d", len(mine))
	}
	active, err := store.Memberships().ListActive(ctx, project.ID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("soft delete must not cascade to memberships, got %d", len(active))
	}

	// a deleted user's email can be registered again
	if err := store.Users().SoftDelete(ctx, user.ID, time.Now()); err != nil {
		t.Fatalf("soft delete user: %v", err)
	}
	again := &domain.User{Email: "c@waffle.test", Name: "c2", Qualification: domain.QualificationPending}
	if err := store.Users().Create(ctx, again); err != nil {
		t.Fatalf("re-register: %v", err)
	}
}

func projectFilter(limit int) repository.ProjectFilter {
	return repository.ProjectFilter{Limit: limit}
}
