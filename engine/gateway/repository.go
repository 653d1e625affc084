package gateway

import (
	"context"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/jackc/pgx/v5"
)

// Repository is the storage contract the gateway drives. Row writes
// report foreign key failures as *ReferenceError so the gateway can
// translate them; a missing row surfaces as ErrNotFound.
type Repository interface {
	// GetForUpdate fetches the current row by id, locking it until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, def *entity.Def, id int64) (entity.Fields, error)
	// Insert writes a new row with exactly the provided columns and
	// returns the assigned id.
	Insert(ctx context.Context, def *entity.Def, fields entity.Fields) (int64, error)
	// Update sets exactly the provided columns on the row.
	Update(ctx context.Context, def *entity.Def, id int64, fields entity.Fields) error
	// WithTx returns a repository instance that uses the given transaction
	WithTx(tx pgx.Tx) Repository
}

// Transactor runs a function inside one database transaction. An error
// from fn rolls back; otherwise the transaction commits.
type Transactor interface {
	WithTx(ctx context.Context, fn func(pgx.Tx) error) error
}
