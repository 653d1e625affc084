// Package reporting serves read models over the catalog and audit
// tables: customer lifetime value, loyalty tiers, price and field
// change history, and data-quality snapshots.
package reporting

import (
	"context"
	"time"

	"github.com/aethermart/dataplane/engine/audit"
	"github.com/aethermart/dataplane/engine/core"
	"github.com/aethermart/dataplane/engine/entity"
	"github.com/shopspring/decimal"
)

// Tier is a loyalty band derived from registration age.
type Tier string

const (
	TierGold   Tier = "gold"
	TierSilver Tier = "silver"
	TierBronze Tier = "bronze"
)

// TierFor bands a customer by how long ago they registered: gold after
// 24 months, silver after 12, bronze below that. Boundaries are
// inclusive, so a customer registered exactly 24 months ago is gold.
func TierFor(registration, now time.Time) Tier {
	switch {
	case !registration.After(now.AddDate(0, -24, 0)):
		return TierGold
	case !registration.After(now.AddDate(0, -12, 0)):
		return TierSilver
	default:
		return TierBronze
	}
}

// CustomerValue is one row of the lifetime value ranking.
type CustomerValue struct {
	CustomerID    int64           `json:"customer_id"    db:"customer_id"`
	FirstName     string          `json:"first_name"     db:"first_name"`
	LastName      string          `json:"last_name"      db:"last_name"`
	Email         *string         `json:"email"          db:"email"`
	Orders        int64           `json:"orders"         db:"order_count"`
	LifetimeValue decimal.Decimal `json:"lifetime_value" db:"lifetime_value"`
}

// LoyaltyMember is one row of the loyalty tier listing. Tier is
// computed from the registration date, not stored.
type LoyaltyMember struct {
	CustomerID       int64     `json:"customer_id"       db:"customer_id"`
	FirstName        string    `json:"first_name"        db:"first_name"`
	LastName         string    `json:"last_name"         db:"last_name"`
	RegistrationDate time.Time `json:"registration_date" db:"registration_date"`
	Tier             Tier      `json:"tier"              db:"-"`
}

// PriceChange is one recorded movement of a product's price.
type PriceChange struct {
	RecordUID  core.ID          `json:"record_uid"  db:"record_uid"`
	ProductID  int64            `json:"product_id"  db:"product_id"`
	OldPrice   *decimal.Decimal `json:"old_price"   db:"old_price"`
	NewPrice   decimal.Decimal  `json:"new_price"   db:"new_price"`
	Operation  audit.Operation  `json:"operation"   db:"operation"`
	Actor      string           `json:"actor"       db:"actor"`
	RecordedAt time.Time        `json:"recorded_at" db:"recorded_at"`
}

// AuditEntry is one recorded field change of a catalog entity.
type AuditEntry struct {
	RecordUID  core.ID         `json:"record_uid"  db:"record_uid"`
	Kind       entity.Kind     `json:"entity_kind" db:"entity_kind"`
	EntityID   int64           `json:"entity_id"   db:"entity_id"`
	Field      string          `json:"field"       db:"field"`
	OldValue   *string         `json:"old_value"   db:"old_value"`
	NewValue   *string         `json:"new_value"   db:"new_value"`
	Operation  audit.Operation `json:"operation"   db:"operation"`
	Actor      string          `json:"actor"       db:"actor"`
	RecordedAt time.Time       `json:"recorded_at" db:"recorded_at"`
}

// RuleCounts are the rule-level tallies behind the quality snapshot.
type RuleCounts struct {
	CustomersWithEmail int64 `json:"customers_with_email"         db:"customers_with_email"`
	ProductsPriced     int64 `json:"products_with_positive_price" db:"products_with_positive_price"`
	OrdersPositive     int64 `json:"orders_with_positive_total"   db:"orders_with_positive_total"`
}

// QualityCheck compares one rule-level count against its configured
// floor.
type QualityCheck struct {
	Name      string `json:"name"`
	Count     int64  `json:"count"`
	Threshold int64  `json:"threshold"`
	Passed    bool   `json:"passed"`
}

// QualitySnapshot is a point-in-time view of dataset health.
type QualitySnapshot struct {
	TakenAt time.Time        `json:"taken_at"`
	Tables  map[string]int64 `json:"tables"`
	Checks  []QualityCheck   `json:"checks"`
}

// Healthy reports whether every check cleared its threshold.
func (s *QualitySnapshot) Healthy() bool {
	for _, check := range s.Checks {
		if !check.Passed {
			return false
		}
	}
	return true
}

// Failed returns the checks that fell below their thresholds.
func (s *QualitySnapshot) Failed() []QualityCheck {
	var failed []QualityCheck
	for _, check := range s.Checks {
		if !check.Passed {
			failed = append(failed, check)
		}
	}
	return failed
}

// Repository is the read-side storage contract.
type Repository interface {
	// CustomerValues ranks customers by total order amount, highest
	// first. A zero limit returns every customer.
	CustomerValues(ctx context.Context, limit uint64) ([]CustomerValue, error)
	// Members lists customers with their registration dates, oldest
	// first. Tier is left for the caller to fill in.
	Members(ctx context.Context) ([]LoyaltyMember, error)
	// PriceHistory lists a product's recorded price movements in
	// chronological order.
	PriceHistory(ctx context.Context, productID int64) ([]PriceChange, error)
	// AuditTrail lists an entity's recorded field changes in
	// chronological order.
	AuditTrail(ctx context.Context, kind entity.Kind, entityID int64) ([]AuditEntry, error)
	// TableCounts tallies rows per catalog table.
	TableCounts(ctx context.Context) (map[string]int64, error)
	// RuleCounts tallies the rows that satisfy each quality rule.
	RuleCounts(ctx context.Context) (*RuleCounts, error)
}
