package behaviors

import (
	"context"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/pkg/reccache"
)

// ReccacheAdapter adapts *reccache.Cache to ports.RecommendationCache. Every
// entry is stored under the global scope: the caching behavior's own cache
// key already encodes the request type and a stable hash of the payload, so
// reccache's (scope, requestType) axis collapses to (Global, key).
type ReccacheAdapter struct {
	Cache *reccache.Cache
}

func (a ReccacheAdapter) Get(_ context.Context, key string) (models.OptimizationRecommendation, bool, error) {
	rec, ok := a.Cache.Get(models.ScopeGlobal, key)
	return rec, ok, nil
}

func (a ReccacheAdapter) Set(_ context.Context, key string, rec models.OptimizationRecommendation, ttl time.Duration) error {
	a.Cache.SetWithTTL(models.ScopeGlobal, key, rec, ttl)
	return nil
}
