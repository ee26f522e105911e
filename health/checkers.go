package health

import (
	"context"
	"fmt"

	"github.com/jonwraymond/localops/cache"
	"github.com/jonwraymond/localops/govern"
)

// CacheStatser is implemented by cache stores that expose counters.
type CacheStatser interface {
	Stats() cache.Stats
}

// CacheChecker reports cache effectiveness. It degrades when the hit rate
// falls below the configured minimum once enough lookups have happened.
type CacheChecker struct {
	name       string
	store      CacheStatser
	minHitRate float64
	minLookups int64
}

// NewCacheChecker creates a cache health checker. A zero minHitRate
// disables the hit-rate threshold.
func NewCacheChecker(name string, store CacheStatser, minHitRate float64) *CacheChecker {
	return &CacheChecker{
		name:       name,
		store:      store,
		minHitRate: minHitRate,
		minLookups: 100,
	}
}

// Name returns the name of this checker.
func (c *CacheChecker) Name() string {
	return c.name
}

// Check reports cache statistics and hit-rate status.
func (c *CacheChecker) Check(ctx context.Context) Result {
	stats := c.store.Stats()

	details := map[string]any{
		"size":       stats.Size,
		"size_bytes": stats.SizeBytes,
		"hits":       stats.Hits,
		"misses":     stats.Misses,
		"evictions":  stats.Evictions,
		"hit_rate":   stats.HitRate,
	}

	lookups := stats.Hits + stats.Misses
	if c.minHitRate > 0 && lookups >= c.minLookups && stats.HitRate < c.minHitRate {
		return Degraded(
			fmt.Sprintf("cache hit rate low: %.2f", stats.HitRate),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("cache holding %d entries", stats.Size),
	).WithDetails(details)
}

// BulkheadChecker reports concurrency limiter saturation. It degrades when
// any category has callers waiting for a slot.
type BulkheadChecker struct {
	bulkhead *govern.Bulkhead
}

// NewBulkheadChecker creates a bulkhead health checker.
func NewBulkheadChecker(b *govern.Bulkhead) *BulkheadChecker {
	return &BulkheadChecker{bulkhead: b}
}

// Name returns the name of this checker.
func (c *BulkheadChecker) Name() string {
	return "bulkhead"
}

// Check reports per-category saturation.
func (c *BulkheadChecker) Check(ctx context.Context) Result {
	metrics := c.bulkhead.Metrics()

	details := make(map[string]any, len(metrics))
	waiting := 0
	saturated := 0
	for category, m := range metrics {
		details[category] = map[string]any{
			"active":         m.Active,
			"waiting":        m.Waiting,
			"max_active":     m.MaxActive,
			"max_concurrent": m.MaxConcurrent,
			"admitted":       m.Admitted,
		}
		waiting += m.Waiting
		if m.Active >= m.MaxConcurrent {
			saturated++
		}
	}

	if waiting > 0 {
		return Degraded(
			fmt.Sprintf("%d callers waiting across %d saturated categories", waiting, saturated),
		).WithDetails(details)
	}

	return Healthy("all categories have free slots").WithDetails(details)
}

// RateLimitChecker reports rate limiter pressure. It degrades when more
// than half of the observed requests were rejected.
type RateLimitChecker struct {
	limiter *govern.RateLimiter
}

// NewRateLimitChecker creates a rate limiter health checker.
func NewRateLimitChecker(l *govern.RateLimiter) *RateLimitChecker {
	return &RateLimitChecker{limiter: l}
}

// Name returns the name of this checker.
func (c *RateLimitChecker) Name() string {
	return "ratelimit"
}

// Check reports rejection pressure.
func (c *RateLimitChecker) Check(ctx context.Context) Result {
	m := c.limiter.Metrics()

	details := map[string]any{
		"identities": m.Identities,
		"allowed":    m.Allowed,
		"rejected":   m.Rejected,
	}

	total := m.Allowed + m.Rejected
	if total > 0 && m.Rejected*2 > total {
		return Degraded(
			fmt.Sprintf("rate limiter rejecting heavily: %d of %d requests", m.Rejected, total),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("tracking %d identities", m.Identities),
	).WithDetails(details)
}
