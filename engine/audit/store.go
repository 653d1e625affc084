package audit

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Store persists records, routing each record's stream to its backing
// table. Appends are the only write operation history supports.
type Store interface {
	// Append inserts one record into its stream's table.
	Append(ctx context.Context, record *Record) error
	// WithTx returns a store instance that uses the given transaction
	WithTx(tx pgx.Tx) Store
}
