package repository

import "context"

// Transactor runs fn inside a single storage transaction carried on the
// context passed to fn. Repositories called with that context join the
// transaction. A nested call joins the outer transaction instead of opening
// a new one. The transaction commits only when fn returns nil and ctx is
// still live; otherwise every write is rolled back.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
