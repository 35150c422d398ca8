package boltdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/wafflestudio/waffice/domain"
)

type membershipRepository struct {
	store *Store
}

func (r *membershipRepository) GetActive(ctx context.Context, projectID, userID string) (*domain.Membership, error) {
	rows, err := r.filter(ctx, func(m domain.Membership) bool {
		return m.ProjectID == projectID && m.UserID == userID && m.IsActive()
	})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.ErrMembershipNotFound
	}
	return &rows[0], nil
}

func (r *membershipRepository) ListActive(ctx context.Context, projectID string) ([]domain.Membership, error) {
	return r.filter(ctx, func(m domain.Membership) bool {
		return m.ProjectID == projectID && m.IsActive()
	})
}

func (r *membershipRepository) ListActiveWithUsers(ctx context.Context, projectID string) ([]domain.ProjectMember, error) {
	var members []domain.ProjectMember
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		rows, err := collectMemberships(tx, func(m domain.Membership) bool {
			return m.ProjectID == projectID && m.IsActive()
		})
		if err != nil {
			return err
		}
		for _, row := range rows {
			// the join ignores soft deletion, matching the relational store
			var user domain.User
			found, err := get(tx, bucketUsers, row.UserID, &user)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			members = append(members, domain.ProjectMember{
				Membership: row,
				Email:      user.Email,
				Name:       user.Name,
			})
		}
		return nil
	})
	if err != nil {
		return nil, domain.StorageError("list project members", err)
	}
	return members, nil
}

func (r *membershipRepository) CountLeaders(ctx context.Context, projectID string) (int, error) {
	leaders, err := r.LockActiveLeaders(ctx, projectID)
	if err != nil {
		return 0, err
	}
	return len(leaders), nil
}

// LockActiveLeaders relies on Bolt's single writer for exclusion.
func (r *membershipRepository) LockActiveLeaders(ctx context.Context, projectID string) ([]domain.Membership, error) {
	return r.filter(ctx, func(m domain.Membership) bool {
		return m.ProjectID == projectID && m.IsActiveLeader()
	})
}

func (r *membershipRepository) History(ctx context.Context, projectID, userID string) ([]domain.Membership, error) {
	return r.filter(ctx, func(m domain.Membership) bool {
		return m.ProjectID == projectID && m.UserID == userID
	})
}

func (r *membershipRepository) Create(ctx context.Context, membership *domain.Membership) error {
	if membership == nil {
		return domain.ErrInvalidPayload
	}
	if membership.ID == "" {
		membership.ID = uuid.NewString()
	}

	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		active, err := collectMemberships(tx, func(m domain.Membership) bool {
			return m.ProjectID == membership.ProjectID && m.UserID == membership.UserID && m.IsActive()
		})
		if err != nil {
			return err
		}
		if len(active) > 0 {
			return domain.NewError(domain.ErrCodeConflict, "user already has an active membership")
		}
		created, err := r.store.nextStamp(tx, "memberships")
		if err != nil {
			return err
		}
		membership.CreatedAt = created
		return put(tx, bucketMemberships, membership.ID, membership)
	})
	return domain.StorageError("create membership", err)
}

func (r *membershipRepository) End(ctx context.Context, id string, leftAt time.Time) error {
	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		var membership domain.Membership
		found, err := get(tx, bucketMemberships, id, &membership)
		if err != nil {
			return err
		}
		if !found || !membership.IsActive() {
			return domain.ErrMembershipNotFound
		}
		left := domain.DateOf(leftAt)
		membership.LeftAt = &left
		return put(tx, bucketMemberships, membership.ID, membership)
	})
	return domain.StorageError("end membership", err)
}

func (r *membershipRepository) filter(ctx context.Context, match func(domain.Membership) bool) ([]domain.Membership, error) {
	var rows []domain.Membership
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		var err error
		rows, err = collectMemberships(tx, match)
		return err
	})
	if err != nil {
		return nil, domain.StorageError("list memberships", err)
	}
	return rows, nil
}

// collectMemberships returns matching rows ordered by joined date, then
// creation time.
func collectMemberships(tx *bolt.Tx, match func(domain.Membership) bool) ([]domain.Membership, error) {
	var rows []domain.Membership
	err := each(tx, bucketMemberships, func(m domain.Membership) error {
		if match(m) {
			rows = append(rows, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].JoinedAt.Equal(rows[j].JoinedAt) {
			return rows[i].JoinedAt.Before(rows[j].JoinedAt)
		}
		return rows[i].CreatedAt.Before(rows[j].CreatedAt)
	})
	return rows, nil
}
