package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/aethermart/dataplane/engine/audit"
	"github.com/jackc/pgx/v5"
)

// AuditRepo implements audit.Store, routing each record's stream to
// its backing table. Rows are append-only: no update or delete path
// exists here.
type AuditRepo struct {
	db DBInterface
}

var _ audit.Store = (*AuditRepo)(nil)

// NewAuditRepo creates an audit store over the given connection.
func NewAuditRepo(db DBInterface) *AuditRepo {
	return &AuditRepo{db: db}
}

// Append inserts one record into its stream's table.
func (r *AuditRepo) Append(ctx context.Context, record *audit.Record) error {
	if record == nil {
		return fmt.Errorf("audit record is required")
	}
	switch record.Stream {
	case audit.StreamPriceHistory:
		return r.appendPriceHistory(ctx, record)
	case audit.StreamFieldAudit:
		return r.appendFieldAudit(ctx, record)
	default:
		return fmt.Errorf("unknown audit stream: %q", record.Stream)
	}
}

func (r *AuditRepo) appendPriceHistory(ctx context.Context, record *audit.Record) error {
	query, args, err := squirrel.Insert("product_price_history").
		Columns("record_uid", "product_id", "old_price", "new_price", "operation", "actor", "recorded_at").
		Values(record.ID, record.EntityID, record.OldValue, record.NewValue, record.Operation, record.Actor, record.At).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building price history insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("appending price history for product %d: %w", record.EntityID, err)
	}
	return nil
}

func (r *AuditRepo) appendFieldAudit(ctx context.Context, record *audit.Record) error {
	query, args, err := squirrel.Insert("entity_audit_log").
		Columns("record_uid", "entity_kind", "entity_id", "field", "old_value", "new_value", "operation", "actor", "recorded_at").
		Values(record.ID, record.Kind, record.EntityID, record.Field, record.OldValue, record.NewValue, record.Operation, record.Actor, record.At).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("building audit log insert: %w", err)
	}
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("appending audit log for %s %d: %w", record.Kind, record.EntityID, err)
	}
	return nil
}

// WithTx returns a store instance that uses the given transaction.
func (r *AuditRepo) WithTx(tx pgx.Tx) audit.Store {
	return &AuditRepo{db: tx}
}
