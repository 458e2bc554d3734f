// Package behaviors implements the pipeline's composable interceptors:
// recommendation caching, AI-driven optimization, and performance tracking.
// Each implements ports.Behavior, the transport-agnostic analogue of
// func(http.Handler) http.Handler middleware.
package behaviors

import (
	"context"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// RecommendationEngine is the subset of the Optimization Engine the caching
// and AI-optimization behaviors depend on.
type RecommendationEngine interface {
	AnalyzeRequest(ctx context.Context, requestType string) (models.OptimizationRecommendation, error)
	ShouldCache(requestType string, accessPatterns []float64) (models.CachingRecommendation, error)
	LearnFromExecution(requestType string, appliedStrategies []models.Strategy, actual models.ExecutionMetrics) error
}

// CachingConfig carries the Caching Behavior's tunables.
type CachingConfig struct {
	EnableCaching              bool
	MinExecutionTimeForCaching time.Duration
	MaxCachedResponseSize      int
}

// AIOptimizationConfig carries the AI-optimization behavior's tunables.
type AIOptimizationConfig struct {
	Enabled bool
}

// TrackingConfig carries the Performance Tracking Behavior's tunables.
type TrackingConfig struct {
	EnableTracking           bool
	EnableDetailedLogging    bool
	EnablePeriodicExport     bool
	EnableImmediateExport    bool
	ExportInterval           time.Duration
	ImmediateExportThreshold int
	ResetAfterExport         bool
	SlidingWindowSize        int
	TrackPercentiles         bool
}
