package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/reporting"
	"github.com/georgysavva/scany/v2/pgxscan"
)

const ruleCountsQuery = "SELECT " +
	"(SELECT COUNT(*) FROM customers WHERE email IS NOT NULL) AS customers_with_email, " +
	"(SELECT COUNT(*) FROM products WHERE price > 0) AS products_with_positive_price, " +
	"(SELECT COUNT(*) FROM orders WHERE total_amount > 0) AS orders_with_positive_total"

// ReportingRepo implements reporting.Repository over the catalog and
// audit tables.
type ReportingRepo struct {
	db       DBInterface
	registry *entity.Registry
}

var _ reporting.Repository = (*ReportingRepo)(nil)

// NewReportingRepo creates a reporting store over the given connection.
func NewReportingRepo(db DBInterface, registry *entity.Registry) *ReportingRepo {
	return &ReportingRepo{db: db, registry: registry}
}

// CustomerValues ranks customers by total order amount, highest first.
func (r *ReportingRepo) CustomerValues(ctx context.Context, limit uint64) ([]reporting.CustomerValue, error) {
	sb := squirrel.Select(
		"c.customer_id", "c.first_name", "c.last_name", "c.email",
		"COUNT(o.order_id) AS order_count",
		"COALESCE(SUM(o.total_amount), 0) AS lifetime_value",
	).
		From("customers c").
		LeftJoin("orders o ON o.customer_id = c.customer_id").
		GroupBy("c.customer_id", "c.first_name", "c.last_name", "c.email").
		OrderBy("lifetime_value DESC", "c.customer_id").
		PlaceholderFormat(squirrel.Dollar)
	if limit > 0 {
		sb = sb.Limit(limit)
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building customer value query: %w", err)
	}
	var values []reporting.CustomerValue
	if err := pgxscan.Select(ctx, r.db, &values, query, args...); err != nil {
		return nil, fmt.Errorf("scanning customer values: %w", err)
	}
	return values, nil
}

// Members lists customers with a known registration date, oldest
// first.
func (r *ReportingRepo) Members(ctx context.Context) ([]reporting.LoyaltyMember, error) {
	query, args, err := squirrel.Select("customer_id", "first_name", "last_name", "registration_date").
		From("customers").
		Where("registration_date IS NOT NULL").
		OrderBy("registration_date", "customer_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building loyalty member query: %w", err)
	}
	var members []reporting.LoyaltyMember
	if err := pgxscan.Select(ctx, r.db, &members, query, args...); err != nil {
		return nil, fmt.Errorf("scanning loyalty members: %w", err)
	}
	return members, nil
}

// PriceHistory lists a product's recorded price movements in
// chronological order.
func (r *ReportingRepo) PriceHistory(ctx context.Context, productID int64) ([]reporting.PriceChange, error) {
	query, args, err := squirrel.Select(
		"record_uid", "product_id", "old_price", "new_price",
		"operation", "actor", "recorded_at",
	).
		From("product_price_history").
		Where("product_id = ?", productID).
		OrderBy("recorded_at", "history_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building price history query: %w", err)
	}
	var changes []reporting.PriceChange
	if err := pgxscan.Select(ctx, r.db, &changes, query, args...); err != nil {
		return nil, fmt.Errorf("scanning price history: %w", err)
	}
	return changes, nil
}

// AuditTrail lists an entity's recorded field changes in chronological
// order.
func (r *ReportingRepo) AuditTrail(ctx context.Context, kind entity.Kind, entityID int64) ([]reporting.AuditEntry, error) {
	query, args, err := squirrel.Select(
		"record_uid", "entity_kind", "entity_id", "field",
		"old_value", "new_value", "operation", "actor", "recorded_at",
	).
		From("entity_audit_log").
		Where("entity_kind = ?", kind).
		Where("entity_id = ?", entityID).
		OrderBy("recorded_at", "audit_id").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building audit trail query: %w", err)
	}
	var entries []reporting.AuditEntry
	if err := pgxscan.Select(ctx, r.db, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("scanning audit trail: %w", err)
	}
	return entries, nil
}

// TableCounts tallies rows per catalog table.
func (r *ReportingRepo) TableCounts(ctx context.Context) (map[string]int64, error) {
	kinds := r.registry.Kinds()
	counts := make(map[string]int64, len(kinds))
	for _, kind := range kinds {
		def, err := r.registry.Get(kind)
		if err != nil {
			return nil, err
		}
		query, args, err := squirrel.Select("COUNT(*)").From(def.Table).ToSql()
		if err != nil {
			return nil, fmt.Errorf("building count query for %s: %w", def.Table, err)
		}
		var count int64
		if err := r.db.QueryRow(ctx, query, args...).Scan(&count); err != nil {
			return nil, fmt.Errorf("counting %s: %w", def.Table, err)
		}
		counts[def.Table] = count
	}
	return counts, nil
}

// RuleCounts tallies the rows that satisfy each quality rule.
func (r *ReportingRepo) RuleCounts(ctx context.Context) (*reporting.RuleCounts, error) {
	var counts reporting.RuleCounts
	if err := pgxscan.Get(ctx, r.db, &counts, ruleCountsQuery); err != nil {
		return nil, fmt.Errorf("scanning rule counts: %w", err)
	}
	return &counts, nil
}
