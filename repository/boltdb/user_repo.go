package boltdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
)

type userRepository struct {
	store *Store
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		found, err := get(tx, bucketUsers, id, &user)
		if err != nil {
			return err
		}
		if !found || user.IsDeleted() {
			return domain.ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, domain.StorageError("get user", err)
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user *domain.User
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		var err error
		user, err = findByEmail(tx, email, "")
		return err
	})
	if err != nil {
		return nil, domain.StorageError("get user by email", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context, filter repository.UserFilter) ([]domain.User, error) {
	var users []domain.User
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		return each(tx, bucketUsers, func(user domain.User) error {
			if user.IsDeleted() {
				return nil
			}
			if filter.Qualification != "" && user.Qualification != filter.Qualification {
				return nil
			}
			if filter.Before != nil && !user.CreatedAt.Before(*filter.Before) {
				return nil
			}
			users = append(users, user)
			return nil
		})
	})
	if err != nil {
		return nil, domain.StorageError("list users", err)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].CreatedAt.After(users[j].CreatedAt)
	})
	if limit := clampLimit(filter.Limit); len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		taken, err := findByEmail(tx, user.Email, "")
		if err != nil {
			return err
		}
		if taken != nil {
			return domain.ErrEmailTaken
		}

		created, err := r.store.nextStamp(tx, "users")
		if err != nil {
			return err
		}
		user.CreatedAt = created
		user.UpdatedAt = created
		return put(tx, bucketUsers, user.ID, user)
	})
	return domain.StorageError("create user", err)
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	if user == nil {
		return domain.ErrInvalidPayload
	}

	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		var current domain.User
		found, err := get(tx, bucketUsers, user.ID, &current)
		if err != nil {
			return err
		}
		if !found || current.IsDeleted() {
			return domain.ErrUserNotFound
		}
		taken, err := findByEmail(tx, user.Email, user.ID)
		if err != nil {
			return err
		}
		if taken != nil {
			return domain.ErrEmailTaken
		}

		current.Email = user.Email
		current.Name = user.Name
		current.Qualification = user.Qualification
		current.IsAdmin = user.IsAdmin
		current.UpdatedAt = r.store.now().UTC()
		user.UpdatedAt = current.UpdatedAt
		return put(tx, bucketUsers, current.ID, current)
	})
	return domain.StorageError("update user", err)
}

func (r *userRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		var user domain.User
		found, err := get(tx, bucketUsers, id, &user)
		if err != nil {
			return err
		}
		if !found || user.IsDeleted() {
			return domain.ErrUserNotFound
		}
		deleted := at.UTC()
		user.DeletedAt = &deleted
		user.UpdatedAt = deleted
		return put(tx, bucketUsers, user.ID, user)
	})
	return domain.StorageError("delete user", err)
}

// findByEmail returns the live user owning email, ignoring exceptID.
func findByEmail(tx *bolt.Tx, email, exceptID string) (*domain.User, error) {
	var match *domain.User
	err := each(tx, bucketUsers, func(user domain.User) error {
		if match != nil || user.IsDeleted() || user.ID == exceptID {
			return nil
		}
		if strings.EqualFold(user.Email, email) {
			u := user
			match = &u
		}
		return nil
	})
	return match, err
}
