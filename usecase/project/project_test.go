package project

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
	memberUC "github.com/wafflestudio/waffice/usecase/member"
)

type fixture struct {
	uc      *UseCase
	members *memberUC.UseCase
	audit   *auditUC.UseCase
	store   repository.Store
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := testutil.NewStore(t).Repositories()
	logger := zaptest.NewLogger(t)
	audit := auditUC.New(store.Audit, logger)
	members := memberUC.New(store.Tx, store.Projects, store.Memberships, store.Users, audit, logger)
	uc := New(store.Tx, store.Projects, store.Memberships, store.Users, members, pagination.PageSizeConfig{}, logger)
	uc.clock = testutil.NewClock(time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)).Now
	return fixture{uc: uc, members: members, audit: audit, store: store}
}

func TestCreateDefaultsCreatorToLeader(t *testing.T) {
	f := newFixture(t)
	creator := testutil.SeedUser(t, f.store, "creator", domain.QualificationActive, true)
	ctx := context.Background()

	project, err := f.uc.Create(ctx, domain.NewProject{Name: "  waffice  "}, creator.ID, "founder")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if project.Name != "waffice" || project.Status != domain.ProjectStatusActive {
		t.Fatalf("unexpected project %+v", project)
	}
	if want := time.Date(2024, 9, 1, 0, 0, 0, 0, time.UTC); !project.StartDate.Equal(want) {
		t.Fatalf("expected start date %v, got %v", want, project.StartDate)
	}

	detail, err := f.uc.GetWithMembers(ctx, project.ID)
	if err != nil {
		t.Fatalf("get with members: %v", err)
	}
	if len(detail.Members) != 1 {
		t.Fatalf("expected one member, got %d", len(detail.Members))
	}
	m := detail.Members[0]
	if m.UserID != creator.ID || m.Role != domain.RoleLeader || m.Position != "founder" || m.Email != creator.Email {
		t.Fatalf("unexpected member %+v", m)
	}

	entries, err := f.audit.ListByUser(ctx, creator.ID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != domain.AuditProjectJoined {
		t.Fatalf("expected one project_joined entry, got %+v", entries)
	}
}

func TestCreateWithExplicitMembers(t *testing.T) {
	f := newFixture(t)
	admin := testutil.SeedUser(t, f.store, "admin", domain.QualificationActive, true)
	lead := testutil.SeedUser(t, f.store, "lead", domain.QualificationRegular, false)
	dev := testutil.SeedUser(t, f.store, "dev", domain.QualificationAssociate, false)
	ctx := context.Background()

	project, err := f.uc.Create(ctx, domain.NewProject{
		Name:   "siksha",
		Status: domain.ProjectStatusMaintenance,
		Members: []domain.MemberInput{
			{UserID: lead.ID, Role: domain.RoleLeader, Position: "pm"},
			{UserID: dev.ID, Role: domain.RoleMember, Position: "backend"},
		},
	}, admin.ID, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	leaders, err := f.members.CountLeaders(ctx, project.ID)
	if err != nil || leaders != 1 {
		t.Fatalf("expected one leader, got %d (%v)", leaders, err)
	}
	if _, err := f.members.GetActive(ctx, project.ID, admin.ID); !errors.Is(err, domain.ErrMembershipNotFound) {
		t.Fatalf("creator must not join when members are listed, got %v", err)
	}

	mine, err := f.uc.ListByUser(ctx, dev.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != project.ID {
		t.Fatalf("expected the new project, got %+v", mine)
	}

	entries, err := f.audit.ListByUser(ctx, dev.ID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].ActorID == nil || *entries[0].ActorID != admin.ID {
		t.Fatalf("expected one entry by the creator, got %+v", entries)
	}
}

func TestCreateRequiresLeader(t *testing.T) {
	f := newFixture(t)
	dev := testutil.SeedUser(t, f.store, "dev", domain.QualificationRegular, false)
	ctx := context.Background()

	_, err := f.uc.Create(ctx, domain.NewProject{
		Name:    "leaderless",
		Members: []domain.MemberInput{{UserID: dev.ID, Role: domain.RoleMember}},
	}, dev.ID, "")
	if !errors.Is(err, domain.ErrNoLeader) {
		t.Fatalf("expected no leader error, got %v", err)
	}

	if _, err := f.uc.Create(ctx, domain.NewProject{Name: "orphan"}, "", ""); !errors.Is(err, domain.ErrNoLeader) {
		t.Fatalf("expected no leader error without a creator, got %v", err)
	}

	page, err := f.uc.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected no projects, got %d", len(page.Items))
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	creator := testutil.SeedUser(t, f.store, "creator", domain.QualificationActive, false)
	ctx := context.Background()
	before := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := map[string]domain.NewProject{
		"blank name":     {Name: "   "},
		"unknown status": {Name: "p", Status: "paused"},
		"end before start": {
			Name:      "p",
			StartDate: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
			EndDate:   &before,
		},
		"unknown role": {Name: "p", Members: []domain.MemberInput{
			{UserID: creator.ID, Role: domain.RoleLeader},
			{UserID: creator.ID, Role: "owner"},
		}},
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := f.uc.Create(ctx, in, creator.ID, "")
			if !domain.IsDomainError(err, domain.ErrCodeInvalid) {
				t.Fatalf("expected INVALID, got %v", err)
			}
		})
	}
}

func TestCreateWithUnknownUserPersistsNothing(t *testing.T) {
	f := newFixture(t)
	lead := testutil.SeedUser(t, f.store, "lead", domain.QualificationRegular, false)
	ctx := context.Background()

	_, err := f.uc.Create(ctx, domain.NewProject{
		Name: "ghosted",
		Members: []domain.MemberInput{
			{UserID: lead.ID, Role: domain.RoleLeader},
			{UserID: "ghost", Role: domain.RoleMember},
		},
	}, lead.ID, "")
	if !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}

	page, err := f.uc.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("expected no projects, got %+v", page.Items)
	}
	entries, err := f.audit.ListByUser(ctx, lead.ID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected no audit entries, got %+v", entries)
	}
}

func TestListPagesWithoutGapsOrDuplicates(t *testing.T) {
	f := newFixture(t)
	creator := testutil.SeedUser(t, f.store, "creator", domain.QualificationActive, true)
	ctx := context.Background()

	const total = 23
	for i := 0; i < total; i++ {
		if _, err := f.uc.Create(ctx, domain.NewProject{Name: fmt.Sprintf("project-%02d", i)}, creator.ID, ""); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	for _, limit := range []int{1, 4, 5, 22, 23, 50} {
		t.Run(fmt.Sprintf("limit=%d", limit), func(t *testing.T) {
			seen := make(map[string]bool)
			var (
				cursor *time.Time
				last   time.Time
				pages  int
			)
			for {
				page, err := f.uc.List(ctx, ListParams{Cursor: cursor, Limit: limit})
				if err != nil {
					t.Fatalf("list: %v", err)
				}
				pages++
				if len(page.Items) > limit {
					t.Fatalf("page holds %d items, limit %d", len(page.Items), limit)
				}
				for _, p := range page.Items {
					if seen[p.ID] {
						t.Fatalf("duplicate project %s", p.ID)
					}
					seen[p.ID] = true
					if !last.IsZero() && !p.CreatedAt.Before(last) {
						t.Fatalf("projects not strictly newest first")
					}
					last = p.CreatedAt
				}
				if page.NextCursor == nil {
					break
				}
				cursor = page.NextCursor
			}
			if len(seen) != total {
				t.Fatalf("expected %d projects, saw %d", total, len(seen))
			}
			if want := (total + limit - 1) / limit; pages != want {
				t.Fatalf("expected %d pages, got %d", want, pages)
			}
		})
	}
}

func TestListClampsLimitAndFiltersStatus(t *testing.T) {
	f := newFixture(t)
	creator := testutil.SeedUser(t, f.store, "creator", domain.QualificationActive, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.uc.Create(ctx, domain.NewProject{Name: fmt.Sprintf("active-%d", i)}, creator.ID, ""); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := f.uc.Create(ctx, domain.NewProject{Name: "done", Status: domain.ProjectStatusEnded}, creator.ID, ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := f.uc.List(ctx, ListParams{Limit: -5})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 4 || page.NextCursor != nil {
		t.Fatalf("expected all four projects on one page, got %d", len(page.Items))
	}

	ended, err := f.uc.List(ctx, ListParams{Status: domain.ProjectStatusEnded})
	if err != nil {
		t.Fatalf("list ended: %v", err)
	}
	if len(ended.Items) != 1 || ended.Items[0].Name != "done" {
		t.Fatalf("expected only the ended project, got %+v", ended.Items)
	}

	if _, err := f.uc.List(ctx, ListParams{Status: "paused"}); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID status, got %v", err)
	}
}

func TestDeleteHidesProjectAndKeepsHistory(t *testing.T) {
	f := newFixture(t)
	creator := testutil.SeedUser(t, f.store, "creator", domain.QualificationActive, true)
	ctx := context.Background()

	project, err := f.uc.Create(ctx, domain.NewProject{Name: "doomed"}, creator.ID, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.uc.Delete(ctx, project.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := f.uc.Get(ctx, project.ID); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	page, err := f.uc.List(ctx, ListParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("deleted project still listed: %+v", page.Items)
	}
	mine, err := f.uc.ListByUser(ctx, creator.ID)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("deleted project still listed for member: %+v", mine)
	}

	entries, err := f.audit.ListByUser(ctx, creator.ID)
	if err != nil {
		t.Fatalf("list audit: %v", err)
	}
	if len(entries) != 1 || entries[0].Payload["project_id"] != project.ID {
		t.Fatalf("expected the join entry to survive, got %+v", entries)
	}

	if err := f.uc.Delete(ctx, project.ID); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestUpdateAppliesPatch(t *testing.T) {
	f := newFixture(t)
	creator := testutil.SeedUser(t, f.store, "creator", domain.QualificationActive, true)
	ctx := context.Background()

	project, err := f.uc.Create(ctx, domain.NewProject{Name: "draft", Description: "first"}, creator.ID, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := " renamed "
	status := domain.ProjectStatusMaintenance
	updated, err := f.uc.Update(ctx, project.ID, domain.ProjectPatch{Name: &name, Status: &status})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "renamed" || updated.Status != status || updated.Description != "first" {
		t.Fatalf("unexpected project %+v", updated)
	}

	end := project.StartDate.AddDate(0, 0, -1)
	if _, err := f.uc.Update(ctx, project.ID, domain.ProjectPatch{EndDate: &end}); !domain.IsDomainError(err, domain.ErrCodeInvalid) {
		t.Fatalf("expected INVALID end date, got %v", err)
	}
	stored, err := f.uc.Get(ctx, project.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.EndDate != nil {
		t.Fatalf("rejected patch must not persist, got end date %v", stored.EndDate)
	}

	if _, err := f.uc.Update(ctx, "missing", domain.ProjectPatch{Name: &name}); !errors.Is(err, domain.ErrProjectNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
