package user

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/internal/pagination"
	"github.com/wafflestudio/waffice/internal/testutil"
	"github.com/wafflestudio/waffice/repository"
	auditUC "github.com/wafflestudio/waffice/usecase/audit"
)

type recordingInvalidator struct {
	ids []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, userID string) {
	r.ids = append(r.ids, userID)
}

type fixture struct {
	uc          *UseCase
	store       repository.Store
	audit       *auditUC.UseCase
	invalidated *recordingInvalidator
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := testutil.NewStore(t).Repositories()
	logger := zaptest.NewLogger(t)
	audit := auditUC.New(store.Audit, logger)
	invalidated := &recordingInvalidator{}
	uc := New(store.Tx, store.Users, audit, invalidated, pagination.PageSizeConfig{Default: 2, Max: 10}, logger)
	uc.clock = testutil.NewClock(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)).Now
	return fixture{uc: uc, store: store, audit: audit, invalidated: invalidated}
}

func (f fixture) history(t *testing.T, userID string) []domain.AuditEntry {
	t.Helper()
	entries, err := f.audit.ListByUser(context.Background(), userID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	return entries
}

func TestRegister(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.uc.Register(ctx, "  Kim@Waffle.Test ", " Kim ")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "kim@waffle.test" || user.Name != "Kim" {
		t.Fatalf("expected normalized identity, got %+v", user)
	}
	if user.Qualification != domain.QualificationPending || user.IsAdmin {
		t.Fatalf("new users start pending and non-admin, got %+v", user)
	}

	if _, err := f.uc.Register(ctx, "kim@waffle.test", "Other"); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}

	invalid := map[string][2]string{
		"bad email":    {"not-an-email", "x"},
		"display name": {"Kim <kim2@waffle.test>", "x"},
		"empty name":   {"lee@waffle.test", "   "},
	}
	for name, in := range invalid {
		if _, err := f.uc.Register(ctx, in[0], in[1]); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
			t.Fatalf("%s: expected INVALID, got %v", name, err)
		}
	}
}

func TestApprove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.store, "u1", domain.QualificationPending, false)

	if _, err := f.uc.Approve(ctx, user.ID, domain.QualificationPending, "admin"); !errors.Is(err, domain.ErrInvalidQualification) {
		t.Fatalf("expected invalid qualification, got %v", err)
	}
	if _, err := f.uc.Approve(ctx, user.ID, "alumni", "admin"); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID for unknown qualification, got %v", err)
	}
	if len(f.history(t, user.ID)) != 0 {
		t.Fatal("rejected approvals must not be logged")
	}

	approved, err := f.uc.Approve(ctx, user.ID, domain.QualificationAssociate, "admin")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Qualification != domain.QualificationAssociate {
		t.Fatalf("unexpected qualification %s", approved.Qualification)
	}

	entries := f.history(t, user.ID)
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Action != domain.AuditQualificationChanged || e.Payload["from"] != "pending" || e.Payload["to"] != "associate" {
		t.Fatalf("unexpected entry %+v", e)
	}
	if e.ActorID == nil || *e.ActorID != "admin" {
		t.Fatalf("expected actor admin, got %v", e.ActorID)
	}
	if len(f.invalidated.ids) != 1 || f.invalidated.ids[0] != user.ID {
		t.Fatalf("expected cached identity dropped, got %v", f.invalidated.ids)
	}

	if _, err := f.uc.Approve(ctx, "ghost", domain.QualificationActive, "admin"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestUpdateLogsOnlyRealChanges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.store, "u1", domain.QualificationRegular, false)

	same := domain.QualificationRegular
	notAdmin := false
	if _, err := f.uc.Update(ctx, user.ID, domain.UserUpdate{Qualification: &same, IsAdmin: &notAdmin}, "admin"); err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if got := len(f.history(t, user.ID)); got != 0 {
		t.Fatalf("no-op update logged %d entries", got)
	}

	active := domain.QualificationActive
	admin := true
	name := "Renamed"
	updated, err := f.uc.Update(ctx, user.ID, domain.UserUpdate{
		ProfilePatch:  domain.ProfilePatch{Name: &name},
		Qualification: &active,
		IsAdmin:       &admin,
	}, "admin")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Qualification != active || !updated.IsAdmin {
		t.Fatalf("unexpected user %+v", updated)
	}

	revoke := false
	if _, err := f.uc.Update(ctx, user.ID, domain.UserUpdate{IsAdmin: &revoke}, "admin"); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	entries := f.history(t, user.ID)
	var actions []domain.AuditAction
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	want := []domain.AuditAction{domain.AuditAdminRevoked, domain.AuditAdminGranted, domain.AuditQualificationChanged}
	if fmt.Sprint(actions) != fmt.Sprint(want) {
		t.Fatalf("got actions %v, want %v", actions, want)
	}

	pending := domain.QualificationPending
	if _, err := f.uc.Update(ctx, user.ID, domain.UserUpdate{Qualification: &pending}, "admin"); !errors.Is(err, domain.ErrInvalidQualification) {
		t.Fatalf("expected invalid qualification, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1 := testutil.SeedUser(t, f.store, "u1", domain.QualificationAssociate, false)
	u2 := testutil.SeedUser(t, f.store, "u2", domain.QualificationAssociate, false)

	email := " NEW@waffle.test"
	updated, err := f.uc.UpdateProfile(ctx, u1.ID, domain.ProfilePatch{Email: &email})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Email != "new@waffle.test" || updated.Qualification != domain.QualificationAssociate {
		t.Fatalf("unexpected user %+v", updated)
	}

	if _, err := f.uc.UpdateProfile(ctx, u2.ID, domain.ProfilePatch{Email: &updated.Email}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}
	blank := " "
	if _, err := f.uc.UpdateProfile(ctx, u2.ID, domain.ProfilePatch{Name: &blank}); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
	if len(f.history(t, u1.ID)) != 0 {
		t.Fatal("profile edits are not part of the history")
	}
}

func TestListAndPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		q := domain.QualificationRegular
		if i%2 == 0 {
			q = domain.QualificationPending
		}
		testutil.SeedUser(t, f.store, fmt.Sprintf("u%d", i), q, false)
	}

	var (
		cursor *time.Time
		seen   int
		pages  int
	)
	for {
		page, err := f.uc.List(ctx, ListParams{Cursor: cursor})
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		pages++
		seen += len(page.Items)
		if page.NextCursor == nil {
			break
		}
		cursor = page.NextCursor
	}
	if seen != 5 || pages != 3 {
		t.Fatalf("expected 5 users over 3 pages, got %d over %d", seen, pages)
	}

	pending, err := f.uc.ListPending(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 pending users, got %d", len(pending))
	}
	for _, u := range pending {
		if u.Qualification != domain.QualificationPending {
			t.Fatalf("unexpected user %+v", u)
		}
	}
}

func TestDeleteFreesEmailAndKeepsHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := testutil.SeedUser(t, f.store, "u1", domain.QualificationPending, false)
	if _, err := f.uc.Approve(ctx, user.ID, domain.QualificationRegular, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	if err := f.uc.Delete(ctx, user.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.uc.Get(ctx, user.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(f.history(t, user.ID)) != 1 {
		t.Fatal("history must survive deletion")
	}
	if _, err := f.uc.Register(ctx, user.Email, "again"); err != nil {
		t.Fatalf("re-register with freed email: %v", err)
	}
	if err := f.uc.Delete(ctx, user.ID); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}
