package behaviors

import (
	"context"
	"log/slog"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/pkg/decisionlog"
	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
	"github.com/kubilitics-labs/reqopt/internal/pkg/tracing"
	"github.com/kubilitics-labs/reqopt/internal/ports"
)

// CachingBehavior caches OptimizationRecommendation objects, never the
// handler's own response, and always invokes next regardless of cache state:
// a hit short-circuits only the recompute-and-store branch below, not the
// downstream call itself.
type CachingBehavior struct {
	Config CachingConfig
	Cache  ports.RecommendationCache
	Engine RecommendationEngine
	Policy ports.PolicyLookup
	Access *accessTracker
	Logger *slog.Logger
}

// NewCachingBehavior wires a CachingBehavior with its own access tracker.
func NewCachingBehavior(cfg CachingConfig, cache ports.RecommendationCache, engine RecommendationEngine, policy ports.PolicyLookup, logger *slog.Logger) *CachingBehavior {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachingBehavior{
		Config: cfg,
		Cache:  cache,
		Engine: engine,
		Policy: policy,
		Access: newAccessTracker(),
		Logger: logger,
	}
}

func (b *CachingBehavior) Handle(ctx context.Context, req ports.Request, next ports.Next) (any, error) {
	if !b.Config.EnableCaching || b.Cache == nil {
		return next(ctx)
	}
	ctx, span := tracing.StartSpan(ctx, "behaviors.CachingBehavior")
	defer span.End()

	key := cacheKey(req)
	_, hit, err := b.Cache.Get(ctx, key)
	if err != nil {
		b.Logger.Warn("recommendation cache get failed, treating as miss", "request_type", req.Type, "error", err)
		hit = false
	}

	start := time.Now()
	resp, herr := next(ctx)
	execTime := time.Since(start)
	if herr != nil {
		return resp, herr
	}

	if hit {
		metrics.CacheDecisionsTotal.WithLabelValues(req.Type, "hit").Inc()
		decisionlog.LogCacheDecision("", req.Type, models.CachingRecommendation{ShouldCache: true}, "served from recommendation cache")
		return resp, nil
	}

	if resp == nil || ctx.Err() != nil || b.Engine == nil {
		return resp, nil
	}

	if execTime < b.Config.MinExecutionTimeForCaching {
		metrics.CacheDecisionsTotal.WithLabelValues(req.Type, "skip_too_fast").Inc()
		return resp, nil
	}

	if b.Policy != nil {
		if policy, ok := b.Policy(req.Type); ok && !policy.EnableAIAnalysis {
			return resp, nil
		}
	}

	accessPatterns := b.Access.record(req.Type, time.Now())
	cachingRec, err := b.Engine.ShouldCache(req.Type, accessPatterns)
	if err != nil {
		b.Logger.Warn("ShouldCache failed", "request_type", req.Type, "error", err)
		return resp, nil
	}
	if !cachingRec.ShouldCache {
		metrics.CacheDecisionsTotal.WithLabelValues(req.Type, "skip").Inc()
		decisionlog.LogCacheDecision("", req.Type, cachingRec, cachingRec.Reasoning)
		return resp, nil
	}

	if b.Config.MaxCachedResponseSize > 0 && estimateSize(resp) > b.Config.MaxCachedResponseSize {
		metrics.CacheDecisionsTotal.WithLabelValues(req.Type, "skip_too_large").Inc()
		return resp, nil
	}

	analysisRec, err := b.Engine.AnalyzeRequest(ctx, req.Type)
	if err != nil || analysisRec.Strategy == models.StrategyNone {
		metrics.CacheDecisionsTotal.WithLabelValues(req.Type, "skip_no_strategy").Inc()
		return resp, nil
	}

	if err := b.Cache.Set(ctx, key, analysisRec, cachingRec.TTL); err != nil {
		b.Logger.Warn("recommendation cache set failed", "request_type", req.Type, "error", err)
		return resp, nil
	}
	metrics.CacheDecisionsTotal.WithLabelValues(req.Type, "cache").Inc()
	decisionlog.LogCacheDecision("", req.Type, cachingRec, cachingRec.Reasoning)
	return resp, nil
}
