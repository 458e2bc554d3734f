// Package reccache provides a bounded, TTL-aware cache for optimization
// recommendations keyed by (scope, request type). Backed by an LRU to bound
// memory regardless of TTL. Entries leave early only through an explicit
// InvalidateRequestType call; retraining does not invalidate them.
package reccache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
)

type entry struct {
	rec   models.OptimizationRecommendation
	expAt time.Time
}

// Cache holds recommendations by (scope, requestType) with TTL and LRU
// eviction. Thread-safe.
type Cache struct {
	ttl time.Duration
	mu  sync.Mutex
	lru *lru.Cache[string, *entry]
}

// New returns a cache with the given capacity and TTL. If ttl <= 0, Get will
// always miss (cache disabled).
func New(capacity int, ttl time.Duration) *Cache {
	if capacity <= 0 {
		capacity = 1000
	}
	l, err := lru.New[string, *entry](capacity)
	if err != nil {
		// Only fails on capacity <= 0, guarded above.
		panic(err)
	}
	return &Cache{ttl: ttl, lru: l}
}

func key(scope models.Scope, requestType string) string {
	return string(scope) + "|" + requestType
}

// Get returns a cached recommendation if present and unexpired. Records
// hit/miss metrics.
func (c *Cache) Get(scope models.Scope, requestType string) (models.OptimizationRecommendation, bool) {
	if c.ttl <= 0 {
		metrics.RecommendationCacheMissesTotal.Inc()
		return models.OptimizationRecommendation{}, false
	}
	k := key(scope, requestType)
	c.mu.Lock()
	e, ok := c.lru.Get(k)
	c.mu.Unlock()
	if !ok || e == nil || time.Now().After(e.expAt) {
		metrics.RecommendationCacheMissesTotal.Inc()
		return models.OptimizationRecommendation{}, false
	}
	metrics.RecommendationCacheHitsTotal.Inc()
	return e.rec, true
}

// Set stores the recommendation for (scope, requestType), replacing any
// existing entry, with TTL from cache config.
func (c *Cache) Set(scope models.Scope, requestType string, rec models.OptimizationRecommendation) {
	c.SetWithTTL(scope, requestType, rec, c.ttl)
}

// SetWithTTL stores the recommendation for (scope, requestType) with an
// explicit per-entry TTL, overriding the cache's configured default. ttl <= 0
// falls back to the configured default; if that is also disabled, the call
// is a no-op.
func (c *Cache) SetWithTTL(scope models.Scope, requestType string, rec models.OptimizationRecommendation, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.ttl
	}
	if ttl <= 0 {
		return
	}
	k := key(scope, requestType)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(k, &entry{rec: rec, expAt: time.Now().Add(ttl)})
}

// InvalidateRequestType removes every scoped entry for requestType. The
// Pattern Recognition Engine's retraining does not call it.
func (c *Cache) InvalidateRequestType(requestType string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, scope := range []models.Scope{models.ScopeGlobal, models.ScopeUser, models.ScopeSession, models.ScopeRequest} {
		c.lru.Remove(key(scope, requestType))
	}
}

// Len reports the number of cached entries (for diagnostics/tests).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
