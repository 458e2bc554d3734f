package optimizer

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kubilitics-labs/reqopt/internal/health"
	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/pkg/tracing"
)

// dbPoolOpportunityThreshold is the database-pool saturation level above
// which a pooling opportunity is reported.
const dbPoolOpportunityThreshold = 0.90

// EngineIntrospection is a narrow, test-only view of the engine's
// lifecycle state.
type EngineIntrospection struct {
	Disposed        bool
	LearningEnabled bool
}

// Introspect reports the engine's lifecycle state. Safe to call after
// Dispose.
func (e *Engine) Introspect() EngineIntrospection {
	return EngineIntrospection{
		Disposed:        e.disposed.Load(),
		LearningEnabled: e.learningEnabled.Load(),
	}
}

// GetModelStatistics summarizes the Pattern Recognition Engine's current
// health: a cumulative-accuracy proxy (correct predictions over total),
// an F1-like blend of that accuracy with the most recent retraining pass's
// sample-weighted group success rate, and the bookkeeping fields model
// validation consumes directly.
func (e *Engine) GetModelStatistics() (models.ModelStats, error) {
	if err := e.checkDisposed(); err != nil {
		return models.ModelStats{}, err
	}

	e.mu.Lock()
	totalPredictions := e.totalPredictions
	correctPredictions := e.correctPredictions
	lastRetrainingTime := e.lastRetrainingTime
	var avgPredictionTime time.Duration
	if e.predictionDurationCount > 0 {
		avgPredictionTime = e.predictionDurationSum / time.Duration(e.predictionDurationCount)
	}
	e.mu.Unlock()

	var accuracy float64
	if totalPredictions > 0 {
		accuracy = float64(correctPredictions) / float64(totalPredictions)
	}

	recall, haveRecall := 0.0, false
	if e.patterns != nil {
		recall, haveRecall = e.patterns.OverallSuccessRate()
	}
	f1 := accuracy
	if haveRecall && (accuracy+recall) > 0 {
		f1 = 2 * accuracy * recall / (accuracy + recall)
	}

	skipped, trained := 0, 0
	if e.patterns != nil {
		skipped = e.patterns.SkippedCount()
		trained = e.patterns.TrainedCount()
	}
	if trained == 0 {
		trained = totalPredictions
	}

	return models.ModelStats{
		Accuracy:              accuracy,
		F1Score:                f1,
		TrainingDataPoints:     trained,
		LastRetrainingTime:     lastRetrainingTime,
		AveragePredictionTime:  avgPredictionTime,
		SkippedPredictions:     skipped,
		TotalPredictions:       totalPredictions,
	}, nil
}

// GetSystemInsights computes a SystemPerformanceInsights snapshot over the
// supplied analysis window, applying the configured bottleneck and
// opportunity thresholds.
// Bottleneck and opportunity scans and prediction summarization run
// concurrently via errgroup, since none depend on the others' output; the
// first internal error aborts the whole call (no partial insights record is
// ever returned).
func (e *Engine) GetSystemInsights(ctx context.Context, window time.Duration) (models.SystemPerformanceInsights, error) {
	if err := e.checkDisposed(); err != nil {
		return models.SystemPerformanceInsights{}, err
	}
	ctx, span := tracing.StartSpan(ctx, "optimizer.GetSystemInsights")
	defer span.End()

	snapshots := e.store.Snapshots()

	var load models.SystemLoadMetrics
	if e.load != nil {
		load = e.load.GetCurrentLoad(ctx)
	}

	var bottlenecks []models.Bottleneck
	var opportunities []models.Opportunity
	var predictions []models.PredictionResult

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		bottlenecks = scanBottlenecks(load)
		return nil
	})
	g.Go(func() error {
		opportunities = scanOpportunities(snapshots, load, e.cfg, e.avgBatchSize())
		return nil
	})
	g.Go(func() error {
		predictions = e.recentPredictions(window)
		return nil
	})
	if err := g.Wait(); err != nil {
		return models.SystemPerformanceInsights{}, err
	}

	p95 := weightedP95(snapshots)
	score := 1.0
	if e.scorer != nil {
		score = e.scorer.Score(load, p95)
	}

	return models.SystemPerformanceInsights{
		AnalysisPeriod:   window,
		AnalysisTime:     time.Now(),
		HealthScore:      score,
		PerformanceGrade: health.Grade(score),
		Bottlenecks:      bottlenecks,
		Opportunities:    opportunities,
		Predictions:      predictions,
		KeyMetrics:       keyMetrics(load, p95),
	}, nil
}

func (e *Engine) avgBatchSize() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.batchSizeCount == 0 {
		return float64(e.cfg.DefaultBatchSize)
	}
	return float64(e.batchSizeSum) / float64(e.batchSizeCount)
}

// TrimPredictions drops the oldest queued predictions until at most max
// remain, for the Data Cleanup Manager's periodic prediction-queue trim.
// max <= 0 is a no-op.
func (e *Engine) TrimPredictions(max int) int {
	if max <= 0 {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.predictionQueue) <= max {
		return 0
	}
	dropped := len(e.predictionQueue) - max
	e.predictionQueue = e.predictionQueue[dropped:]
	return dropped
}

func (e *Engine) recentPredictions(window time.Duration) []models.PredictionResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	if window <= 0 {
		return append([]models.PredictionResult(nil), e.predictionQueue...)
	}
	cutoff := time.Now().Add(-window)
	out := make([]models.PredictionResult, 0, len(e.predictionQueue))
	for _, p := range e.predictionQueue {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

func scanBottlenecks(load models.SystemLoadMetrics) []models.Bottleneck {
	var out []models.Bottleneck
	if load.CPUUtilization >= 0.80 {
		sev := models.SeverityHigh
		if load.CPUUtilization >= 0.95 {
			sev = models.SeverityCritical
		}
		out = append(out, models.Bottleneck{
			Component: "CPU",
			Severity:  sev,
			Description: fmt.Sprintf(
				"High CPU utilization at %.0f%% of capacity", load.CPUUtilization*100),
		})
	}
	if load.MemoryUtilization >= 0.90 {
		sev := models.SeverityHigh
		if load.MemoryUtilization >= 0.95 {
			sev = models.SeverityCritical
		}
		out = append(out, models.Bottleneck{
			Component: "Memory",
			Severity:  sev,
			Description: fmt.Sprintf(
				"High memory utilization at %.0f%% of baseline", load.MemoryUtilization*100),
		})
	}
	if load.ErrorRate >= 0.05 {
		sev := models.SeverityHigh
		if load.ErrorRate >= 0.10 {
			sev = models.SeverityCritical
		}
		out = append(out, models.Bottleneck{
			Component: "Application",
			Severity:  sev,
			Description: fmt.Sprintf(
				"Elevated error rate at %.1f%% of requests", load.ErrorRate*100),
		})
	}
	return out
}

func scanOpportunities(snapshots []models.RequestAnalysisSnapshot, load models.SystemLoadMetrics, cfg Config, avgBatchSize float64) []models.Opportunity {
	var out []models.Opportunity

	if avgRepeatRate := meanRepeatRate(snapshots); avgRepeatRate > cfg.RepeatRateOpportunityThreshold {
		out = append(out, models.Opportunity{
			Title:    "Implement Response Caching",
			Priority: models.PriorityHigh,
			Description: fmt.Sprintf(
				"Average repeat-request rate %.0f%% exceeds the %.0f%% threshold",
				avgRepeatRate*100, cfg.RepeatRateOpportunityThreshold*100),
		})
	}

	if avgBatchSize < cfg.BatchSizeOpportunityThreshold {
		out = append(out, models.Opportunity{
			Title:    "Implement Request Batching",
			Priority: models.PriorityMedium,
			Description: fmt.Sprintf(
				"Average batch size %.1f is below the %.1f threshold", avgBatchSize, cfg.BatchSizeOpportunityThreshold),
		})
	}

	if load.DatabasePoolUtilization > dbPoolOpportunityThreshold {
		out = append(out, models.Opportunity{
			Title:    "Optimize Database Connection Pooling",
			Priority: models.PriorityMedium,
			Description: fmt.Sprintf(
				"Database pool utilization at %.0f%% exceeds the %.0f%% threshold",
				load.DatabasePoolUtilization*100, dbPoolOpportunityThreshold*100),
		})
	}
	return out
}

func meanRepeatRate(snapshots []models.RequestAnalysisSnapshot) float64 {
	if len(snapshots) == 0 {
		return 0
	}
	var sum float64
	for _, s := range snapshots {
		sum += s.RepeatRequestRate
	}
	return sum / float64(len(snapshots))
}

func weightedP95(snapshots []models.RequestAnalysisSnapshot) time.Duration {
	var totalSamples int
	var weighted time.Duration
	for _, s := range snapshots {
		totalSamples += s.SampleCount
		weighted += time.Duration(float64(s.P95ExecutionTime) * float64(s.SampleCount))
	}
	if totalSamples == 0 {
		return 0
	}
	return weighted / time.Duration(totalSamples)
}

func keyMetrics(load models.SystemLoadMetrics, p95 time.Duration) map[string]float64 {
	return map[string]float64{
		"cpu_utilization":           load.CPUUtilization,
		"memory_utilization":        load.MemoryUtilization,
		"error_rate":                load.ErrorRate,
		"throughput_per_second":     load.ThroughputPerSecond,
		"average_response_time_ms": float64(load.AverageResponseTime.Milliseconds()),
		"p95_execution_time_ms":    float64(p95.Milliseconds()),
		"queued_requests":           float64(load.QueuedRequests),
		"database_pool_utilization": load.DatabasePoolUtilization,
		"thread_pool_utilization":   load.ThreadPoolUtilization,
	}
}
