// Package patterns implements the Pattern Recognition Engine: it retrains
// correlation weights, temporal success-rate buckets, and load-based
// success-rate buckets from a batch of prediction outcomes.
package patterns

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// ErrInvalidArgument is returned when Retrain is called with a nil slice,
// a programming error rather than "nothing to retrain on" (an empty,
// non-nil slice is handled like too-few-predictions).
var ErrInvalidArgument = errors.New("patterns: invalid argument")

// ImpactTier classifies a prediction's actual improvement magnitude.
type ImpactTier string

const (
	ImpactLow    ImpactTier = "Low"
	ImpactMedium ImpactTier = "Medium"
	ImpactHigh   ImpactTier = "High"
)

// Classify buckets d: Low < 50ms <= Medium <= 100ms < High.
func Classify(d time.Duration) ImpactTier {
	switch {
	case d < 50*time.Millisecond:
		return ImpactLow
	case d <= 100*time.Millisecond:
		return ImpactMedium
	default:
		return ImpactHigh
	}
}

// LoadBucket classifies concurrent-execution counts for the load-based
// pattern dimension.
type LoadBucket string

const (
	LoadLow    LoadBucket = "Low"
	LoadMedium LoadBucket = "Medium"
	LoadHigh   LoadBucket = "High"
)

// ClassifyLoad buckets concurrent executions: Low <= 50, Medium <= 100,
// High > 100.
func ClassifyLoad(concurrent int) LoadBucket {
	switch {
	case concurrent <= 50:
		return LoadLow
	case concurrent <= 100:
		return LoadMedium
	default:
		return LoadHigh
	}
}

type weightKey struct {
	requestType string
	strategy    models.Strategy
}

type bucketStats struct {
	successes int
	total     int
}

func (b bucketStats) rate() float64 {
	if b.total == 0 {
		return 0
	}
	return float64(b.successes) / float64(b.total)
}

// GroupOutcome is one retrained (request-type, strategy) group's derived
// statistics, kept for callers (the optimizer's insights surface) that want
// the raw group numbers rather than just the blended weight.
type GroupOutcome struct {
	RequestType   string
	Strategy      models.Strategy
	SuccessRate   float64
	MeanImprovement time.Duration
	ImpactTier    ImpactTier
	SampleCount   int
}

// Engine holds the blended correlation weights and temporal/load buckets
// produced by successive Retrain calls. Safe for concurrent use; Retrain
// serializes with every reader.
type Engine struct {
	alpha             float64
	minForRetraining  int
	logger            *slog.Logger

	mu           sync.RWMutex
	weights      map[weightKey]float64
	hourBuckets  [24]bucketStats
	dayBuckets   [7]bucketStats
	loadBuckets  map[LoadBucket]bucketStats
	lastGroups   []GroupOutcome
	lastRetrain  time.Time
	retrainCount int
	totalSkipped int
	totalTrained int
}

// New returns an Engine. alpha <= 0 or > 1 uses the default of 0.3;
// minForRetraining <= 0 uses the default of 10. A nil logger falls back
// to slog.Default().
func New(alpha float64, minForRetraining int, logger *slog.Logger) *Engine {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}
	if minForRetraining <= 0 {
		minForRetraining = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		alpha:            alpha,
		minForRetraining: minForRetraining,
		logger:           logger,
		weights:          make(map[weightKey]float64),
		loadBuckets:      make(map[LoadBucket]bucketStats),
	}
}

// Retrain folds predictions into the engine's weights and buckets. A nil
// slice is an invalid argument. Fewer than minForRetraining entries causes
// a no-op, logged at debug; the threshold is checked on the raw slice
// length, before nil-entry filtering. A nil entry within the slice is
// skipped.
func (e *Engine) Retrain(predictions []*models.PredictionResult) error {
	if predictions == nil {
		return ErrInvalidArgument
	}
	if len(predictions) < e.minForRetraining {
		e.logger.Debug("patterns: skipping retrain, insufficient predictions",
			"count", len(predictions), "minimum", e.minForRetraining)
		return nil
	}

	type groupKey struct {
		requestType string
		strategy    models.Strategy
	}
	groupSamples := make(map[groupKey][]*models.PredictionResult)
	skipped := 0

	for _, p := range predictions {
		if p == nil {
			skipped++
			continue
		}
		for _, s := range p.PredictedStrategies {
			k := groupKey{requestType: p.RequestType, strategy: s}
			groupSamples[k] = append(groupSamples[k], p)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	groups := make([]GroupOutcome, 0, len(groupSamples))
	for k, samples := range groupSamples {
		successes := 0
		var totalImprovement time.Duration
		for _, p := range samples {
			if p.ActualImprovement > 0 {
				successes++
			}
			totalImprovement += p.ActualImprovement
		}
		successRate := float64(successes) / float64(len(samples))
		meanImprovement := totalImprovement / time.Duration(len(samples))

		wk := weightKey{requestType: k.requestType, strategy: k.strategy}
		old := e.weights[wk]
		e.weights[wk] = e.alpha*successRate + (1-e.alpha)*old

		groups = append(groups, GroupOutcome{
			RequestType:     k.requestType,
			Strategy:        k.strategy,
			SuccessRate:     successRate,
			MeanImprovement: meanImprovement,
			ImpactTier:      Classify(meanImprovement),
			SampleCount:     len(samples),
		})
	}

	for _, p := range predictions {
		if p == nil {
			continue
		}
		success := p.ActualImprovement > 0
		ts := p.Timestamp
		if ts.IsZero() {
			continue
		}
		hour := ts.UTC().Hour()
		weekday := int(ts.UTC().Weekday())
		observe(&e.hourBuckets[hour], success)
		observe(&e.dayBuckets[weekday], success)

		lb := ClassifyLoad(p.Metrics.ConcurrentExecutions)
		stats := e.loadBuckets[lb]
		observe(&stats, success)
		e.loadBuckets[lb] = stats
	}

	e.lastGroups = groups
	e.lastRetrain = time.Now()
	e.retrainCount++
	e.totalSkipped += skipped
	e.totalTrained += len(predictions)

	e.logger.Debug("patterns: retrained",
		"predictions", len(predictions), "skipped", skipped, "groups", len(groups))
	return nil
}

func observe(b *bucketStats, success bool) {
	b.total++
	if success {
		b.successes++
	}
}

// Weight returns the current blended correlation weight for (requestType,
// strategy), and whether any retraining has observed that pair yet.
func (e *Engine) Weight(requestType string, strategy models.Strategy) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	w, ok := e.weights[weightKey{requestType: requestType, strategy: strategy}]
	return w, ok
}

// WeightsForType returns every strategy weight recorded for requestType, so
// a caller (the optimization engine) can pick the strongest one without
// knowing the strategy set in advance.
func (e *Engine) WeightsForType(requestType string) map[models.Strategy]float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[models.Strategy]float64)
	for k, w := range e.weights {
		if k.requestType == requestType {
			out[k.strategy] = w
		}
	}
	return out
}

// HourSuccessRate returns the observed success rate for UTC hour-of-day h
// (0-23), and whether any observation landed in that bucket.
func (e *Engine) HourSuccessRate(h int) (float64, bool) {
	if h < 0 || h > 23 {
		return 0, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	b := e.hourBuckets[h]
	return b.rate(), b.total > 0
}

// WeekdaySuccessRate returns the observed success rate for UTC weekday d,
// and whether any observation landed in that bucket.
func (e *Engine) WeekdaySuccessRate(d time.Weekday) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b := e.dayBuckets[int(d)]
	return b.rate(), b.total > 0
}

// LoadSuccessRate returns the observed success rate for load bucket lb, and
// whether any observation landed in that bucket.
func (e *Engine) LoadSuccessRate(lb LoadBucket) (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.loadBuckets[lb]
	return b.rate(), ok && b.total > 0
}

// LastGroups returns the per-group outcomes computed by the most recent
// successful Retrain call (nil before the first one).
func (e *Engine) LastGroups() []GroupOutcome {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]GroupOutcome(nil), e.lastGroups...)
}

// RetrainCount reports how many times Retrain has actually updated state
// (skipped/no-op calls do not count).
func (e *Engine) RetrainCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.retrainCount
}

// LastRetrainTime reports when Retrain last updated state (zero value
// before the first successful retrain).
func (e *Engine) LastRetrainTime() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastRetrain
}

// SkippedCount reports the cumulative number of nil PredictionResult entries
// skipped across every Retrain call that actually ran.
func (e *Engine) SkippedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalSkipped
}

// TrainedCount reports the cumulative number of prediction entries (skipped
// or not) that have been folded into a completed Retrain call.
func (e *Engine) TrainedCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.totalTrained
}

// OverallSuccessRate returns the sample-weighted mean success rate across
// every group from the most recent Retrain call, and whether any group
// exists yet. Used as an accuracy/recall proxy by the optimizer's model
// statistics.
func (e *Engine) OverallSuccessRate() (float64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if len(e.lastGroups) == 0 {
		return 0, false
	}
	var weightedSum float64
	var totalSamples int
	for _, g := range e.lastGroups {
		weightedSum += g.SuccessRate * float64(g.SampleCount)
		totalSamples += g.SampleCount
	}
	if totalSamples == 0 {
		return 0, false
	}
	return weightedSum / float64(totalSamples), true
}
