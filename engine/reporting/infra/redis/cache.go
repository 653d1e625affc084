// Package redis caches the heavier reporting reads behind the
// reporting.Repository interface. A cache failure always degrades to
// the database, never to an error.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aethermart/dataplane/engine/entity"
	"github.com/aethermart/dataplane/engine/reporting"
	"github.com/aethermart/dataplane/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// CachedRepository wraps a reporting repository with Redis caching for
// the ranking reads.
type CachedRepository struct {
	repo   reporting.Repository
	client Interface
	ttl    time.Duration
}

// Interface defines the minimal Redis interface needed for caching.
type Interface interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

var _ reporting.Repository = (*CachedRepository)(nil)

// NewCachedRepository creates a cached view of repo with the given
// entry lifetime.
func NewCachedRepository(repo reporting.Repository, client Interface, ttl time.Duration) reporting.Repository {
	if ttl == 0 {
		ttl = defaultTTL
	}
	return &CachedRepository{repo: repo, client: client, ttl: ttl}
}

// CustomerValues serves the lifetime value ranking cache-aside, keyed
// by limit.
func (c *CachedRepository) CustomerValues(ctx context.Context, limit uint64) ([]reporting.CustomerValue, error) {
	key := fmt.Sprintf("reports:customer-value:%d", limit)
	var values []reporting.CustomerValue
	if c.lookup(ctx, key, &values) {
		return values, nil
	}
	values, err := c.repo.CustomerValues(ctx, limit)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, values)
	return values, nil
}

// Members serves the loyalty roster cache-aside.
func (c *CachedRepository) Members(ctx context.Context) ([]reporting.LoyaltyMember, error) {
	const key = "reports:loyalty-members"
	var members []reporting.LoyaltyMember
	if c.lookup(ctx, key, &members) {
		return members, nil
	}
	members, err := c.repo.Members(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, members)
	return members, nil
}

// lookup fills dst from the cache and reports whether it hit.
func (c *CachedRepository) lookup(ctx context.Context, key string, dst any) bool {
	log := logger.FromContext(ctx)
	cached := c.client.Get(ctx, key)
	if cached.Err() != nil {
		if !errors.Is(cached.Err(), redis.Nil) {
			log.Debug("Reporting cache read failed", "cache_key", key, "error", cached.Err())
		}
		return false
	}
	if err := json.Unmarshal([]byte(cached.Val()), dst); err != nil {
		log.Debug("Failed to unmarshal cached report", "cache_key", key, "error", err)
		return false
	}
	log.Debug("Reporting cache hit", "cache_key", key)
	return true
}

// store caches payload under key, logging and moving on if it cannot.
func (c *CachedRepository) store(ctx context.Context, key string, payload any) {
	log := logger.FromContext(ctx)
	raw, err := json.Marshal(payload)
	if err != nil {
		log.Warn("Failed to marshal report for cache", "cache_key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		log.Warn("Failed to cache report", "cache_key", key, "error", err)
		return
	}
	log.Debug("Cached report", "cache_key", key, "ttl", c.ttl)
}

// Delegate the uncached reads to the wrapped repository.

func (c *CachedRepository) PriceHistory(ctx context.Context, productID int64) ([]reporting.PriceChange, error) {
	return c.repo.PriceHistory(ctx, productID)
}

func (c *CachedRepository) AuditTrail(ctx context.Context, kind entity.Kind, entityID int64) ([]reporting.AuditEntry, error) {
	return c.repo.AuditTrail(ctx, kind, entityID)
}

func (c *CachedRepository) TableCounts(ctx context.Context) (map[string]int64, error) {
	return c.repo.TableCounts(ctx)
}

func (c *CachedRepository) RuleCounts(ctx context.Context) (*reporting.RuleCounts, error) {
	return c.repo.RuleCounts(ctx)
}
