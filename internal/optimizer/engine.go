// Package optimizer implements the Optimization Engine: the aggregation
// root that fuses current system load, request-analytics history, and
// pattern weights into recommendations, and owns the background retraining
// loop.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/health"
	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/patterns"
	"github.com/kubilitics-labs/reqopt/internal/pkg/tracing"
	"github.com/kubilitics-labs/reqopt/internal/ports"
	"github.com/kubilitics-labs/reqopt/internal/sysmetrics"
)

// ErrDisposed is returned by every operation once Dispose has been called.
var ErrDisposed = errors.New("optimizer: engine disposed")

// ErrInvalidArgument is returned for programming-error-shaped inputs (nil
// required slices).
var ErrInvalidArgument = errors.New("optimizer: invalid argument")

// AnalysisStore is the subset of the Request Analysis Store the engine
// consumes.
type AnalysisStore interface {
	Snapshot(requestType string) models.RequestAnalysisSnapshot
	Snapshots() []models.RequestAnalysisSnapshot
	Ingest(m models.SingleExecution)
}

// Config carries the engine's tunable knobs, sourced from internal/config.
type Config struct {
	MinConfidenceScore           float64
	MinExecutionsForAnalysis     int
	ModelUpdateInterval          time.Duration
	MaxAutomaticOptimizationRisk models.Risk
	DefaultBatchSize             int
	MaxBatchSize                 int
	MinimumForRetraining         int

	RepeatRateOpportunityThreshold float64
	BatchSizeOpportunityThreshold  float64

	DefaultCacheTTL     time.Duration
	DefaultPolicy       ports.Policy
	P95LatencyBaselineMs int
}

// Engine is the Optimization Engine. Construct with New; call Start to
// launch the background retraining loop, Dispose to tear everything down.
type Engine struct {
	cfg      Config
	store    AnalysisStore
	patterns *patterns.Engine
	scorer   *health.Scorer
	load     *sysmetrics.Provider
	policy   ports.PolicyLookup
	logger   *slog.Logger

	learningEnabled atomic.Bool
	disposed        atomic.Bool

	mu                      sync.Mutex
	predictionQueue         []models.PredictionResult
	predictionsSinceRetrain int
	lastRetrainingTime      time.Time
	totalPredictions        int
	correctPredictions      int
	predictionDurationSum   time.Duration
	predictionDurationCount int
	batchSizeSum            int64
	batchSizeCount          int64

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New returns an Engine wired to its collaborators. logger nil falls back
// to slog.Default().
func New(cfg Config, store AnalysisStore, patternsEngine *patterns.Engine, scorer *health.Scorer, load *sysmetrics.Provider, policy ports.PolicyLookup, logger *slog.Logger) *Engine {
	if cfg.MinConfidenceScore <= 0 {
		cfg.MinConfidenceScore = 0.7
	}
	if cfg.MinExecutionsForAnalysis <= 0 {
		cfg.MinExecutionsForAnalysis = 5
	}
	if cfg.ModelUpdateInterval <= 0 {
		cfg.ModelUpdateInterval = 5 * time.Minute
	}
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = 10
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.MinimumForRetraining <= 0 {
		cfg.MinimumForRetraining = 10
	}
	if cfg.MaxAutomaticOptimizationRisk == "" {
		cfg.MaxAutomaticOptimizationRisk = models.RiskMedium
	}
	if cfg.RepeatRateOpportunityThreshold <= 0 {
		cfg.RepeatRateOpportunityThreshold = 0.30
	}
	if cfg.BatchSizeOpportunityThreshold <= 0 {
		cfg.BatchSizeOpportunityThreshold = 5.0
	}
	if cfg.DefaultCacheTTL <= 0 {
		cfg.DefaultCacheTTL = 60 * time.Second
	}
	if cfg.P95LatencyBaselineMs <= 0 {
		cfg.P95LatencyBaselineMs = 500
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:      cfg,
		store:    store,
		patterns: patternsEngine,
		scorer:   scorer,
		load:     load,
		policy:   policy,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
	e.learningEnabled.Store(true)
	return e
}

// Start launches the background retraining loop, firing every
// ModelUpdateInterval. Safe to call at most once.
func (e *Engine) Start(ctx context.Context) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ticker := time.NewTicker(e.cfg.ModelUpdateInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.retrainQueued()
			case <-e.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Dispose idempotently cancels background retraining, flushes any queued
// predictions through one final retrain pass, and marks the engine
// disposed. Every subsequent operation returns ErrDisposed.
func (e *Engine) Dispose() error {
	e.stopOnce.Do(func() {
		close(e.stopCh)
		e.wg.Wait()
		e.retrainQueued()
		e.disposed.Store(true)
	})
	return nil
}

// SetLearningMode toggles whether LearnFromExecution enqueues new
// predictions for pattern retraining. Analysis ingestion continues
// regardless.
func (e *Engine) SetLearningMode(enabled bool) {
	e.learningEnabled.Store(enabled)
}

func (e *Engine) checkDisposed() error {
	if e.disposed.Load() {
		return ErrDisposed
	}
	return nil
}

func (e *Engine) policyFor(requestType string) ports.Policy {
	if e.policy != nil {
		if p, ok := e.policy(requestType); ok {
			return p
		}
	}
	return e.cfg.DefaultPolicy
}

// AnalyzeRequest fuses current system load, request-analytics history, and
// pattern weights into a recommendation. Returns the zero-effect
// recommendation when no pattern clears MinConfidenceScore.
func (e *Engine) AnalyzeRequest(ctx context.Context, requestType string) (models.OptimizationRecommendation, error) {
	if err := e.checkDisposed(); err != nil {
		return models.OptimizationRecommendation{}, err
	}
	ctx, span := tracing.StartSpan(ctx, "optimizer.AnalyzeRequest")
	defer span.End()
	start := time.Now()
	defer func() { e.recordPredictionDuration(time.Since(start)) }()

	snap := e.store.Snapshot(requestType)
	if snap.SampleCount < e.cfg.MinExecutionsForAnalysis {
		return models.None(fmt.Sprintf("insufficient execution history for %s (%d samples)", requestType, snap.SampleCount)), nil
	}

	weights := e.patterns.WeightsForType(requestType)
	bestStrategy := models.StrategyNone
	bestWeight := 0.0
	for s, w := range weights {
		if w > bestWeight {
			bestWeight = w
			bestStrategy = s
		}
	}
	if bestStrategy == models.StrategyNone || bestWeight < e.cfg.MinConfidenceScore {
		return models.None("no pattern exceeds minimum confidence"), nil
	}

	risk := riskFor(bestStrategy)
	if riskRank(risk) > riskRank(e.cfg.MaxAutomaticOptimizationRisk) {
		return models.None(fmt.Sprintf("strategy %s risk %s exceeds automatic optimization limit %s",
			bestStrategy, risk, e.cfg.MaxAutomaticOptimizationRisk)), nil
	}

	var improvement time.Duration
	for _, g := range e.patterns.LastGroups() {
		if g.RequestType == requestType && g.Strategy == bestStrategy {
			improvement = g.MeanImprovement
			break
		}
	}

	gainPercent := 0.0
	if snap.AverageExecutionTime > 0 {
		gainPercent = float64(improvement) / float64(snap.AverageExecutionTime) * 100
		gainPercent = clamp(gainPercent, 0, 100)
	}

	var load models.SystemLoadMetrics
	if e.load != nil {
		load = e.load.GetCurrentLoad(ctx)
	}

	return models.OptimizationRecommendation{
		Strategy:             bestStrategy,
		Confidence:           bestWeight,
		EstimatedImprovement: improvement,
		Reasoning:            fmt.Sprintf("pattern weight %.2f for %s on %s (system load cpu=%.2f)", bestWeight, bestStrategy, requestType, load.CPUUtilization),
		Priority:             priorityFor(bestWeight, gainPercent, load),
		Risk:                 risk,
		EstimatedGainPercent: gainPercent,
	}, nil
}

// PredictOptimalBatchSize returns an integer in [1, MaxBatchSize], shrinking
// the default under load and growing it when the system is idle.
func (e *Engine) PredictOptimalBatchSize(ctx context.Context, requestType string) (int, error) {
	if err := e.checkDisposed(); err != nil {
		return 0, err
	}
	ctx, span := tracing.StartSpan(ctx, "optimizer.PredictOptimalBatchSize")
	defer span.End()
	base := e.cfg.DefaultBatchSize
	if e.load != nil {
		load := e.load.GetCurrentLoad(ctx)
		switch {
		case load.CPUUtilization >= 0.9 || load.QueuedRequests > 100:
			base /= 2
		case load.CPUUtilization < 0.3 && load.QueuedRequests == 0:
			base *= 2
		}
	}
	if base < 1 {
		base = 1
	}
	if base > e.cfg.MaxBatchSize {
		base = e.cfg.MaxBatchSize
	}
	atomic.AddInt64(&e.batchSizeSum, int64(base))
	atomic.AddInt64(&e.batchSizeCount, 1)
	return base, nil
}

// ShouldCache evaluates observed per-interval access frequencies for
// requestType and decides whether the pipeline should cache its responses.
func (e *Engine) ShouldCache(requestType string, accessPatterns []float64) (models.CachingRecommendation, error) {
	if err := e.checkDisposed(); err != nil {
		return models.CachingRecommendation{}, err
	}
	policy := e.policyFor(requestType)
	if !policy.EnableAIAnalysis {
		return models.CachingRecommendation{Reasoning: "AI analysis disabled for this request type"}, nil
	}

	freq := mean(accessPatterns)
	hitRate := freq / (freq + 1)

	ttl := e.cfg.DefaultCacheTTL
	if policy.UseDynamicTTL {
		ttl = dynamicTTL(e.cfg.DefaultCacheTTL, accessPatterns)
	}

	should := freq >= policy.MinAccessFrequency && hitRate >= policy.MinPredictedHitRate
	reasoning := fmt.Sprintf("access frequency %.2f, predicted hit rate %.2f", freq, hitRate)
	if !should {
		reasoning = "access frequency or predicted hit rate below policy threshold: " + reasoning
	}

	scope := policy.PreferredScope
	if scope == "" {
		scope = models.ScopeGlobal
	}

	return models.CachingRecommendation{
		ShouldCache:      should,
		TTL:              ttl,
		Scope:            scope,
		PredictedHitRate: clamp(hitRate, 0, 1),
		Reasoning:        reasoning,
	}, nil
}

// LearnFromExecution records one execution's actual outcome, feeding both
// the Request Analysis Store and (when learning is enabled) the pattern
// retraining queue.
func (e *Engine) LearnFromExecution(requestType string, appliedStrategies []models.Strategy, actual models.ExecutionMetrics) error {
	if err := e.checkDisposed(); err != nil {
		return err
	}

	before := e.store.Snapshot(requestType)

	ts := actual.LastExecutionTime
	if ts.IsZero() {
		ts = time.Now()
	}
	e.store.Ingest(models.SingleExecution{
		RequestType:          requestType,
		Success:              actual.FailedExecutions == 0,
		Duration:             actual.AverageExecutionTime,
		MemoryAllocatedBytes: actual.MemoryAllocatedBytes,
		ConcurrentExecutions: actual.ConcurrentExecutions,
		CPUUsagePercent:      actual.CPUUsagePercent,
		DatabaseCalls:        actual.DatabaseCalls,
		ExternalAPICalls:     actual.ExternalAPICalls,
		Timestamp:            ts,
	})

	if !e.learningEnabled.Load() {
		return nil
	}

	var improvement time.Duration
	if before.SampleCount > 0 {
		improvement = before.AverageExecutionTime - actual.AverageExecutionTime
	}

	e.mu.Lock()
	e.predictionQueue = append(e.predictionQueue, models.PredictionResult{
		RequestType:         requestType,
		PredictedStrategies: appliedStrategies,
		ActualImprovement:   improvement,
		Timestamp:           ts,
		Metrics:             actual,
	})
	e.predictionsSinceRetrain++
	e.totalPredictions++
	if improvement > 0 {
		e.correctPredictions++
	}
	shouldRetrain := e.predictionsSinceRetrain >= e.cfg.MinimumForRetraining ||
		time.Since(e.lastRetrainingTime) >= e.cfg.ModelUpdateInterval
	e.mu.Unlock()

	if shouldRetrain {
		e.retrainQueued()
	}
	return nil
}

func (e *Engine) retrainQueued() {
	e.mu.Lock()
	if len(e.predictionQueue) == 0 {
		e.mu.Unlock()
		return
	}
	batch := make([]*models.PredictionResult, len(e.predictionQueue))
	for i := range e.predictionQueue {
		p := e.predictionQueue[i]
		batch[i] = &p
	}
	e.predictionQueue = nil
	e.predictionsSinceRetrain = 0
	e.mu.Unlock()

	if err := e.patterns.Retrain(batch); err != nil {
		e.logger.Warn("optimizer: retrain failed", "error", err)
		return
	}
	e.mu.Lock()
	e.lastRetrainingTime = time.Now()
	e.mu.Unlock()
}

func (e *Engine) recordPredictionDuration(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.predictionDurationSum += d
	e.predictionDurationCount++
}

func priorityFor(confidence, gainPercent float64, load models.SystemLoadMetrics) models.Priority {
	switch {
	case confidence >= 0.9 && gainPercent >= 30:
		return models.PriorityCritical
	case confidence >= 0.8 || gainPercent >= 20 || load.CPUUtilization >= 0.8:
		return models.PriorityHigh
	case confidence >= 0.7 || gainPercent >= 10:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// riskRank orders Risk values for the automatic-optimization gate.
func riskRank(r models.Risk) int {
	switch r {
	case models.RiskVeryLow:
		return 0
	case models.RiskLow:
		return 1
	case models.RiskMedium:
		return 2
	case models.RiskHigh:
		return 3
	case models.RiskVeryHigh:
		return 4
	default:
		return 5
	}
}

func riskFor(s models.Strategy) models.Risk {
	switch s {
	case models.StrategyCaching, models.StrategyEnableCaching, models.StrategyLazyLoading:
		return models.RiskLow
	case models.StrategyBatching, models.StrategyCompressionOptimization:
		return models.RiskMedium
	case models.StrategyDatabaseOptimization, models.StrategyResourcePooling, models.StrategyMemoryOptimization, models.StrategyParallelization:
		return models.RiskHigh
	default:
		return models.RiskVeryLow
	}
}

func dynamicTTL(base time.Duration, accessPatterns []float64) time.Duration {
	if len(accessPatterns) < 2 {
		return base
	}
	m := mean(accessPatterns)
	var variance float64
	for _, v := range accessPatterns {
		d := v - m
		variance += d * d
	}
	variance /= float64(len(accessPatterns))
	// Lower variance (stable access pattern) extends TTL; high variance
	// shortens it, within [0.25x, 2x] of the static base.
	factor := clamp(1+(m-variance)/(m+1), 0.25, 2.0)
	return time.Duration(float64(base) * factor)
}

func mean(vs []float64) float64 {
	if len(vs) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
