package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
)

var (
	bucketUsers       = []byte("users")
	bucketProjects    = []byte("projects")
	bucketMemberships = []byte("memberships")
	bucketAudit       = []byte("audit")
	bucketMeta        = []byte("meta")

	allBuckets = [][]byte{bucketUsers, bucketProjects, bucketMemberships, bucketAudit, bucketMeta}
)

type txKey struct{}

// Store is an embedded single-file implementation of every repository.
// Bolt admits one writer at a time, so read-check-write sequences inside
// WithinTx are serialized across the whole store.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open initializes the Bolt file and ensures the buckets exist.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range allBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

var _ repository.Transactor = (*Store)(nil)

func (s *Store) Users() repository.UserRepository             { return &userRepository{store: s} }
func (s *Store) Projects() repository.ProjectRepository       { return &projectRepository{store: s} }
func (s *Store) Memberships() repository.MembershipRepository { return &membershipRepository{store: s} }
func (s *Store) Audit() repository.AuditRepository            { return &auditRepository{store: s} }

// WithinTx runs fn inside a read-write Bolt transaction. A context that
// expires while fn runs aborts the commit.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*bolt.Tx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return domain.StorageError("begin transaction", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return domain.StorageError("commit transaction", err)
		}
		return nil
	})
}

// Ping reports whether the database file is open.
func (s *Store) Ping(context.Context) error {
	if s == nil || s.db == nil {
		return bolt.ErrDatabaseNotOpen
	}
	return s.db.View(func(*bolt.Tx) error { return nil })
}

// Close closes the Bolt database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Stats exposes Bolt statistics for monitoring endpoints.
func (s *Store) Stats() bolt.Stats {
	if s == nil || s.db == nil {
		return bolt.Stats{}
	}
	return s.db.Stats()
}

func (s *Store) view(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if tx, ok := ctx.Value(txKey{}).(*bolt.Tx); ok {
		return fn(tx)
	}
	return s.db.View(fn)
}

func (s *Store) update(ctx context.Context, fn func(tx *bolt.Tx) error) error {
	if tx, ok := ctx.Value(txKey{}).(*bolt.Tx); ok {
		return fn(tx)
	}
	return s.db.Update(fn)
}

// nextStamp returns a microsecond timestamp strictly greater than the last
// one issued under name.
func (s *Store) nextStamp(tx *bolt.Tx, name string) (time.Time, error) {
	meta := tx.Bucket(bucketMeta)
	key := []byte("stamp:" + name)

	next := s.now().UTC().Truncate(time.Microsecond)
	if raw := meta.Get(key); len(raw) == 8 {
		last := time.UnixMicro(int64(binary.BigEndian.Uint64(raw))).UTC()
		if !next.After(last) {
			next = last.Add(time.Microsecond)
		}
	}

	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(next.UnixMicro()))
	if err := meta.Put(key, buf); err != nil {
		return time.Time{}, err
	}
	return next, nil
}

func put(tx *bolt.Tx, bucket []byte, key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), payload)
}

func get(tx *bolt.Tx, bucket []byte, key string, dest interface{}) (bool, error) {
	raw := tx.Bucket(bucket).Get([]byte(key))
	if raw == nil {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

// each decodes every value in bucket, stopping at the first error.
func each[T any](tx *bolt.Tx, bucket []byte, fn func(item T) error) error {
	return tx.Bucket(bucket).ForEach(func(_, v []byte) error {
		var item T
		if err := json.Unmarshal(v, &item); err != nil {
			return err
		}
		return fn(item)
	})
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	if limit > 1000 {
		return 1000
	}
	return limit
}

// Repositories returns every Bolt repository bound to s.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Tx:          s,
		Users:       s.Users(),
		Projects:    s.Projects(),
		Memberships: s.Memberships(),
		Audit:       s.Audit(),
	}
}
