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

// AIOptimizationBehavior asks the Optimization Engine for a recommendation
// before the call and reports what actually happened afterward, so the
// Pattern Recognition Engine can retrain. A cancelled request skips the
// learning update entirely: its measured duration and outcome reflect the
// cancellation, not the handler's intrinsic behavior, and would otherwise
// poison the rolling statistics for every future request of that type.
type AIOptimizationBehavior struct {
	Config AIOptimizationConfig
	Engine RecommendationEngine
	Logger *slog.Logger
}

func NewAIOptimizationBehavior(cfg AIOptimizationConfig, engine RecommendationEngine, logger *slog.Logger) *AIOptimizationBehavior {
	if logger == nil {
		logger = slog.Default()
	}
	return &AIOptimizationBehavior{Config: cfg, Engine: engine, Logger: logger}
}

func (b *AIOptimizationBehavior) Handle(ctx context.Context, req ports.Request, next ports.Next) (any, error) {
	if !b.Config.Enabled || b.Engine == nil {
		return next(ctx)
	}
	ctx, span := tracing.StartSpan(ctx, "behaviors.AIOptimizationBehavior")
	defer span.End()

	rec, err := b.Engine.AnalyzeRequest(ctx, req.Type)
	if err != nil {
		b.Logger.Warn("AnalyzeRequest failed, proceeding unoptimized", "request_type", req.Type, "error", err)
	} else {
		metrics.RecommendationsTotal.WithLabelValues(string(rec.Strategy), string(rec.Priority)).Inc()
		metrics.RecommendationConfidence.WithLabelValues(string(rec.Strategy)).Observe(rec.Confidence)
		decisionlog.LogRecommendation("", req.Type, rec, "applied", rec.Reasoning)
	}

	start := time.Now()
	resp, herr := next(ctx)
	duration := time.Since(start)

	if ctx.Err() != nil {
		decisionlog.LogLearn("", req.Type, "skipped", "request cancelled")
		return resp, herr
	}

	execution := models.ExecutionMetrics{
		RequestType:          req.Type,
		TotalExecutions:      1,
		AverageExecutionTime: duration,
		MedianExecutionTime:  duration,
		P95ExecutionTime:     duration,
		P99ExecutionTime:     duration,
		LastExecutionTime:    time.Now(),
	}
	if herr != nil {
		execution.FailedExecutions = 1
	} else {
		execution.SuccessfulExecutions = 1
	}

	strategies := []models.Strategy{rec.Strategy}
	if err := b.Engine.LearnFromExecution(req.Type, strategies, execution); err != nil {
		b.Logger.Warn("LearnFromExecution failed", "request_type", req.Type, "error", err)
		decisionlog.LogLearn("", req.Type, "error", err.Error())
	} else {
		decisionlog.LogLearn("", req.Type, "applied", "")
	}

	return resp, herr
}
