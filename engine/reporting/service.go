package reporting

import (
	"context"
	"fmt"
	"time"

	"github.com/aethermart/dataplane/engine/entity"
)

// Thresholds are the minimum rule-level counts a healthy dataset must
// carry.
type Thresholds struct {
	MinCustomers int64
	MinProducts  int64
	MinOrders    int64
}

// Service answers reporting queries over a Repository.
type Service struct {
	repo       Repository
	registry   *entity.Registry
	thresholds Thresholds
}

// NewService creates a reporting service.
func NewService(repo Repository, registry *entity.Registry, thresholds Thresholds) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reporting repository is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("entity registry is required")
	}
	return &Service{repo: repo, registry: registry, thresholds: thresholds}, nil
}

// CustomerValues ranks customers by lifetime order value, highest
// first.
func (s *Service) CustomerValues(ctx context.Context, limit uint64) ([]CustomerValue, error) {
	return s.repo.CustomerValues(ctx, limit)
}

// LoyaltyTiers lists customers with the tier their registration age
// earns today.
func (s *Service) LoyaltyTiers(ctx context.Context) ([]LoyaltyMember, error) {
	members, err := s.repo.Members(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	for i := range members {
		members[i].Tier = TierFor(members[i].RegistrationDate, now)
	}
	return members, nil
}

// PriceHistory lists a product's recorded price movements.
func (s *Service) PriceHistory(ctx context.Context, productID int64) ([]PriceChange, error) {
	return s.repo.PriceHistory(ctx, productID)
}

// AuditTrail lists an entity's recorded field changes. The kind must
// be present in the registry.
func (s *Service) AuditTrail(ctx context.Context, kind entity.Kind, entityID int64) ([]AuditEntry, error) {
	if _, err := s.registry.Get(kind); err != nil {
		return nil, err
	}
	return s.repo.AuditTrail(ctx, kind, entityID)
}

// Quality takes a point-in-time snapshot of dataset health against
// the configured thresholds.
func (s *Service) Quality(ctx context.Context) (*QualitySnapshot, error) {
	tables, err := s.repo.TableCounts(ctx)
	if err != nil {
		return nil, err
	}
	rules, err := s.repo.RuleCounts(ctx)
	if err != nil {
		return nil, err
	}
	checks := []QualityCheck{
		{Name: "customers_with_email", Count: rules.CustomersWithEmail, Threshold: s.thresholds.MinCustomers},
		{Name: "products_with_positive_price", Count: rules.ProductsPriced, Threshold: s.thresholds.MinProducts},
		{Name: "orders_with_positive_total", Count: rules.OrdersPositive, Threshold: s.thresholds.MinOrders},
	}
	for i := range checks {
		checks[i].Passed = checks[i].Count >= checks[i].Threshold
	}
	return &QualitySnapshot{
		TakenAt: time.Now().UTC(),
		Tables:  tables,
		Checks:  checks,
	}, nil
}
