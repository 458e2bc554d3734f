// Package ports declares the narrow interfaces the optimizer depends on but
// does not implement: the generic pipeline boundary, the metrics exporter,
// the recommendation cache, the system load counter, and the time-series
// forecasting hook. Concrete adapters live in internal/pkg/* and internal/insights.
package ports

import (
	"context"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// Request is the minimal shape a pipeline behavior needs from an inbound
// request: a stable type tag used to key analytics and policy, plus an
// opaque payload the downstream handler understands.
type Request struct {
	Type    string
	Payload any
}

// Next invokes the remainder of the pipeline and returns its response.
type Next func(ctx context.Context) (any, error)

// Behavior is one composable pipeline interceptor. Implementations never
// fail a request because of their own side-channel concerns (cache, export,
// metrics); only downstream errors and context cancellation propagate.
type Behavior interface {
	Handle(ctx context.Context, req Request, next Next) (any, error)
}

// MetricsExporter is a stateless sink for rolling performance statistics.
// Export failures must be tolerated by the caller; they never propagate.
type MetricsExporter interface {
	ExportMetrics(ctx context.Context, stats models.ExecutionMetrics) error
}

// RecommendationCache is the external recommendation cache plug-in. Get
// returns (zero-value, false) on miss or on internal cache error — callers
// must treat both identically.
type RecommendationCache interface {
	Get(ctx context.Context, key string) (models.OptimizationRecommendation, bool, error)
	Set(ctx context.Context, key string, rec models.OptimizationRecommendation, ttl time.Duration) error
}

// SystemLoadCounter supplies live active/queued request counts when the
// caller has better information than the load metrics provider's own
// heuristic. Absent (nil) falls back to the heuristic.
type SystemLoadCounter interface {
	ActiveCount() int
	QueuedCount() int
}

// ForecastHook is the optional time-series forecasting plug-in. Absent (nil)
// means forecast always returns (0, false).
type ForecastHook interface {
	Forecast(key string, horizon time.Duration) (float64, bool)
}

// Policy carries the per-request-type caching knobs that would, in an
// attribute/annotation-driven stack, be declared on the request type itself.
type Policy struct {
	EnableAIAnalysis    bool
	MinAccessFrequency  float64
	MinPredictedHitRate float64
	UseDynamicTTL       bool
	PreferredScope      models.Scope
}

// PolicyLookup resolves a request type to its Policy. A nil PolicyLookup or
// a miss is treated as "use the configured defaults".
type PolicyLookup func(requestType string) (Policy, bool)

// Compose chains behaviors left-to-right into a single Behavior, the way
// router middleware wraps http.Handler outside-in: the
// first behavior in the slice is the outermost interceptor and the last
// wraps closest to the terminal handler. An empty slice composes to a
// Behavior that simply calls next.
func Compose(behaviors ...Behavior) Behavior {
	return composed{behaviors: behaviors}
}

type composed struct {
	behaviors []Behavior
}

func (c composed) Handle(ctx context.Context, req Request, next Next) (any, error) {
	return c.chain(0, ctx, req, next)
}

func (c composed) chain(i int, ctx context.Context, req Request, next Next) (any, error) {
	if i >= len(c.behaviors) {
		return next(ctx)
	}
	return c.behaviors[i].Handle(ctx, req, func(ctx context.Context) (any, error) {
		return c.chain(i+1, ctx, req, next)
	})
}
