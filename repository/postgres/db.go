package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wafflestudio/waffice/domain"
	"github.com/wafflestudio/waffice/repository"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

// DB hands repositories either the pool or the transaction carried on the
// request context.
type DB struct {
	pool *pgxpool.Pool
}

// NewDB wraps a pgx pool.
func NewDB(pool *pgxpool.Pool) *DB {
	return &DB{pool: pool}
}

var _ repository.Transactor = (*DB)(nil)

// WithinTx runs fn in a READ COMMITTED transaction. Invariant checks inside
// fn take explicit row locks, so stronger isolation is not needed.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := d.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.StorageError("begin transaction", err)
	}
	defer func() {
		// no-op after a successful commit
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	if err := fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.StorageError("commit transaction", err)
	}
	return nil
}

// Ping checks connectivity for health monitoring.
func (d *DB) Ping(ctx context.Context) error {
	return d.pool.Ping(ctx)
}

func (d *DB) conn(ctx context.Context) querier {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return d.pool
}

// Repositories returns every Postgres repository bound to d.
func (d *DB) Repositories() repository.Store {
	return repository.Store{
		Tx:          d,
		Users:       NewUserRepository(d),
		Projects:    NewProjectRepository(d),
		Memberships: NewMembershipRepository(d),
		Audit:       NewAuditRepository(d),
	}
}
