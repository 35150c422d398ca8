package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/wafflestudio/waffice/domain"
)

// auditRepository keys entries by a monotonically increasing sequence, so a
// reverse cursor walk yields newest first.
type auditRepository struct {
	store *Store
}

func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	if entry == nil {
		return domain.ErrInvalidPayload
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.store.now().UTC()
	}
	if entry.Payload == nil {
		entry.Payload = map[string]any{}
	}

	err := r.store.update(ctx, func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketAudit)
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(entry)
		if err != nil {
			return err
		}
		key := make([]byte, 8)
		binary.BigEndian.PutUint64(key, seq)
		return bucket.Put(key, payload)
	})
	return domain.StorageError("append audit entry", err)
}

func (r *auditRepository) ListByUser(ctx context.Context, userID string) ([]domain.AuditEntry, error) {
	var entries []domain.AuditEntry
	err := r.store.view(ctx, func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var entry domain.AuditEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if entry.UserID == userID {
				entries = append(entries, entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.StorageError("list audit entries", err)
	}
	return entries, nil
}
