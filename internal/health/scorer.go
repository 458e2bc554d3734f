// Package health computes a single [0,1] health score from a
// SystemLoadMetrics snapshot.
package health

import (
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// Weights is the configurable set of contribution weights for Score.
// Expected (not enforced) to sum to 1.0; Score normalizes defensively if
// they don't.
type Weights struct {
	CPU        float64
	Memory     float64
	ErrorRate  float64
	P95Latency float64
	QueueDepth float64

	// P95LatencyBaseline and QueueDepthBaseline convert unbounded metrics
	// into a [0,1] "badness" fraction: p95/baseline and queue/baseline,
	// each clamped to 1.
	P95LatencyBaseline time.Duration
	QueueDepthBaseline int
}

// DefaultWeights is the default contribution distribution.
func DefaultWeights() Weights {
	return Weights{
		CPU:                0.25,
		Memory:             0.2,
		ErrorRate:          0.25,
		P95Latency:         0.2,
		QueueDepth:         0.1,
		P95LatencyBaseline: 500 * time.Millisecond,
		QueueDepthBaseline: 100,
	}
}

// Scorer computes the weighted health score. Construct with New; a zero-value
// Scorer has no weights and always scores 1.
type Scorer struct {
	weights Weights
}

// New returns a Scorer using w. If all five weights are zero, the weights are
// replaced by DefaultWeights(); a single zero weight is kept and drops that
// metric from the score. A non-positive baseline falls back to the matching
// DefaultWeights() baseline.
func New(w Weights) *Scorer {
	d := DefaultWeights()
	if w.CPU == 0 && w.Memory == 0 && w.ErrorRate == 0 && w.P95Latency == 0 && w.QueueDepth == 0 {
		w = d
	}
	if w.P95LatencyBaseline <= 0 {
		w.P95LatencyBaseline = d.P95LatencyBaseline
	}
	if w.QueueDepthBaseline <= 0 {
		w.QueueDepthBaseline = d.QueueDepthBaseline
	}
	return &Scorer{weights: w}
}

// Score computes the weighted health score in [0,1]. Every input metric is
// first turned into a "badness" fraction in [0,1] (higher = worse), then
// 1 - weighted-average-badness is returned, so the result is monotone: any
// increase in CPU, memory, error rate, p95 latency, or queue depth can only
// lower or hold the score, never raise it.
func (s *Scorer) Score(m models.SystemLoadMetrics, p95 time.Duration) float64 {
	cpuBad := clamp01(m.CPUUtilization)
	memBad := clamp01(m.MemoryUtilization)
	errBad := clamp01(m.ErrorRate)
	latBad := clamp01(ratio(p95, s.weights.P95LatencyBaseline))
	queueBad := clamp01(ratio(time.Duration(m.QueuedRequests), time.Duration(s.weights.QueueDepthBaseline)))

	w := s.weights
	totalWeight := w.CPU + w.Memory + w.ErrorRate + w.P95Latency + w.QueueDepth
	if totalWeight <= 0 {
		return 1
	}

	weightedBad := w.CPU*cpuBad + w.Memory*memBad + w.ErrorRate*errBad + w.P95Latency*latBad + w.QueueDepth*queueBad
	badness := weightedBad / totalWeight

	return clamp01(1 - badness)
}

// Grade maps a score to a letter grade: A >= 0.9, B >= 0.75, C >= 0.6,
// D >= 0.4, else F.
func Grade(score float64) models.Grade {
	switch {
	case score >= 0.9:
		return models.GradeA
	case score >= 0.75:
		return models.GradeB
	case score >= 0.6:
		return models.GradeC
	case score >= 0.4:
		return models.GradeD
	default:
		return models.GradeF
	}
}

func ratio(v, baseline time.Duration) float64 {
	if baseline <= 0 {
		return 0
	}
	return float64(v) / float64(baseline)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
