// Package timeseries implements the bounded, per-metric-key time-series
// store: point ingestion, windowed range queries, anomaly detection, and an
// optional forecasting hook. Each key owns an independent ring buffer, so
// writes to distinct keys never contend.
package timeseries

import (
	"math"
	"sync"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/ports"
)

const (
	defaultMaxHistorySize   = 10000
	defaultZScoreThreshold  = 3.0
	defaultMinPointsForAnom = 10
)

// series is a bounded FIFO ring buffer of points for one key.
type series struct {
	mu     sync.RWMutex
	points []models.TimeSeriesPoint
	cap    int
	head   int // index of oldest point when len == cap
	size   int
}

func newSeries(capacity int) *series {
	return &series{points: make([]models.TimeSeriesPoint, capacity), cap: capacity}
}

func (s *series) append(p models.TimeSeriesPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.size < s.cap {
		s.points[(s.head+s.size)%s.cap] = p
		s.size++
		return
	}
	// Full: overwrite oldest, advance head. FIFO eviction.
	s.points[s.head] = p
	s.head = (s.head + 1) % s.cap
}

// snapshot returns a defensive copy of the points currently stored, oldest
// first. Readers always see a consistent prefix/suffix, never a torn point.
func (s *series) snapshot() []models.TimeSeriesPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.TimeSeriesPoint, s.size)
	for i := 0; i < s.size; i++ {
		out[i] = s.points[(s.head+i)%s.cap]
	}
	return out
}

// Store is the bounded, concurrent time-series database. Zero value is not
// usable; construct with New.
type Store struct {
	maxHistorySize  int
	zScoreThreshold float64
	minPoints       int

	mu     sync.RWMutex
	series map[string]*series

	forecast ports.ForecastHook
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithForecastHook wires an optional forecasting plug-in.
func WithForecastHook(h ports.ForecastHook) Option {
	return func(s *Store) { s.forecast = h }
}

// WithZScoreThreshold overrides the default anomaly threshold k (default 3.0).
func WithZScoreThreshold(k float64) Option {
	return func(s *Store) { s.zScoreThreshold = k }
}

// WithMinPointsForAnomaly overrides the minimum sample count required before
// anomaly detection runs (default 10).
func WithMinPointsForAnomaly(n int) Option {
	return func(s *Store) { s.minPoints = n }
}

// New returns a Store whose per-key buffers hold at most maxHistorySize
// points each. maxHistorySize <= 0 uses the default of 10,000.
func New(maxHistorySize int, opts ...Option) *Store {
	if maxHistorySize <= 0 {
		maxHistorySize = defaultMaxHistorySize
	}
	s := &Store{
		maxHistorySize:  maxHistorySize,
		zScoreThreshold: defaultZScoreThreshold,
		minPoints:       defaultMinPointsForAnom,
		series:          make(map[string]*series),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) seriesFor(key string) *series {
	s.mu.RLock()
	sr, ok := s.series[key]
	s.mu.RUnlock()
	if ok {
		return sr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if sr, ok = s.series[key]; ok {
		return sr
	}
	sr = newSeries(s.maxHistorySize)
	s.series[key] = sr
	return sr
}

// Store records one observation for key at timestamp. O(1); evicts the
// oldest point for key when the buffer is full.
func (s *Store) Store(key string, value float64, timestamp time.Time) {
	s.seriesFor(key).append(models.TimeSeriesPoint{Key: key, Value: value, Timestamp: timestamp})
}

// Range returns every stored point for key whose timestamp falls within
// [now-window, now]. Unknown key returns an empty, non-nil slice.
func (s *Store) Range(key string, window time.Duration) []models.TimeSeriesPoint {
	s.mu.RLock()
	sr, ok := s.series[key]
	s.mu.RUnlock()
	if !ok {
		return []models.TimeSeriesPoint{}
	}
	all := sr.snapshot()
	if window <= 0 {
		return all
	}
	cutoff := time.Now().Add(-window)
	out := make([]models.TimeSeriesPoint, 0, len(all))
	for _, p := range all {
		if !p.Timestamp.Before(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// DetectAnomalies examines the most recent lookbackPoints (clamped to what's
// available) and flags points whose deviation from the mean exceeds
// zScoreThreshold standard deviations. Returns empty when fewer than
// minPointsForAnomaly points are available, or when the slice is
// degenerate (zero variance). Never panics.
func (s *Store) DetectAnomalies(key string, lookbackPoints int) []models.Anomaly {
	s.mu.RLock()
	sr, ok := s.series[key]
	s.mu.RUnlock()
	if !ok {
		return []models.Anomaly{}
	}
	all := sr.snapshot()
	if lookbackPoints > 0 && lookbackPoints < len(all) {
		all = all[len(all)-lookbackPoints:]
	}
	if len(all) < s.minPoints {
		return []models.Anomaly{}
	}

	mean, stddev := meanStddev(all)
	if stddev == 0 || math.IsNaN(stddev) {
		return []models.Anomaly{}
	}

	anomalies := make([]models.Anomaly, 0)
	for _, p := range all {
		z := (p.Value - mean) / stddev
		if math.Abs(z) > s.zScoreThreshold {
			anomalies = append(anomalies, models.Anomaly{
				Timestamp: p.Timestamp,
				Value:     p.Value,
				ZScore:    z,
			})
		}
	}
	return anomalies
}

// Forecast delegates to the configured forecasting hook, if any. Absent hook
// returns (0, false).
func (s *Store) Forecast(key string, horizon time.Duration) (float64, bool) {
	if s.forecast == nil {
		return 0, false
	}
	return s.forecast.Forecast(key, horizon)
}

func meanStddev(points []models.TimeSeriesPoint) (mean, stddev float64) {
	n := float64(len(points))
	if n == 0 {
		return 0, 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	mean = sum / n

	var variance float64
	for _, p := range points {
		d := p.Value - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}
