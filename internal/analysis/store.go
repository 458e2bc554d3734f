// Package analysis implements the Request Analysis Store: per-request-type
// rolling aggregates built from ingested ExecutionMetrics/SingleExecution
// observations. Ingestion is concurrency-safe per key via a fine-grained
// per-entry mutex; distinct keys never contend with each other.
package analysis

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

const defaultWindowSize = 10000

type entry struct {
	mu sync.Mutex

	requestType      string
	durations        []time.Duration // bounded ring, oldest evicted
	concurrentPeak   int
	successCount     int64
	failureCount     int64
	dbCalls          int64
	externalAPICalls int64
	cacheHits        int64
	cacheMisses      int64
	repeatCount      int64
	totalCount       int64
	lastActivity     time.Time
}

func newEntry(requestType string, windowSize int) *entry {
	return &entry{requestType: requestType, durations: make([]time.Duration, 0, windowSize)}
}

func (e *entry) ingest(m models.SingleExecution, windowSize int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m.Success {
		e.successCount++
	} else {
		e.failureCount++
	}
	e.dbCalls += int64(m.DatabaseCalls)
	e.externalAPICalls += int64(m.ExternalAPICalls)
	if m.ConcurrentExecutions > e.concurrentPeak {
		e.concurrentPeak = m.ConcurrentExecutions
	}

	e.durations = append(e.durations, m.Duration)
	if len(e.durations) > windowSize {
		e.durations = e.durations[len(e.durations)-windowSize:]
	}

	e.totalCount++
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	if ts.After(e.lastActivity) {
		e.lastActivity = ts
	}
}

func (e *entry) recordCacheOutcome(hit bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if hit {
		e.cacheHits++
	} else {
		e.cacheMisses++
	}
}

func (e *entry) recordRepeat() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.repeatCount++
}

func (e *entry) snapshot() models.RequestAnalysisSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	sorted := append([]time.Duration(nil), e.durations...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var avg, p50, p95, p99 time.Duration
	if n := len(sorted); n > 0 {
		var sum time.Duration
		for _, d := range sorted {
			sum += d
		}
		avg = sum / time.Duration(n)
		p50 = percentile(sorted, 0.50)
		p95 = percentile(sorted, 0.95)
		p99 = percentile(sorted, 0.99)
	}

	var errorRate float64
	if total := e.successCount + e.failureCount; total > 0 {
		errorRate = float64(e.failureCount) / float64(total)
	}

	var cacheHitRatio float64
	if total := e.cacheHits + e.cacheMisses; total > 0 {
		cacheHitRatio = float64(e.cacheHits) / float64(total)
	}

	var repeatRate float64
	if e.totalCount > 0 {
		repeatRate = float64(e.repeatCount) / float64(e.totalCount)
	}

	return models.RequestAnalysisSnapshot{
		RequestType:             e.requestType,
		SampleCount:             len(sorted),
		AverageExecutionTime:    avg,
		P50ExecutionTime:        p50,
		P95ExecutionTime:        p95,
		P99ExecutionTime:        p99,
		ConcurrentExecutionPeak: e.concurrentPeak,
		ErrorRate:               errorRate,
		DatabaseCalls:           e.dbCalls,
		ExternalAPICalls:        e.externalAPICalls,
		CacheHitRatio:           cacheHitRatio,
		RepeatRequestRate:       repeatRate,
		LastActivityTime:        e.lastActivity,
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Store is the Request Analysis Store. Zero value is not usable; construct
// with New.
type Store struct {
	windowSize int

	mu      sync.RWMutex
	entries map[string]*entry
}

// New returns a Store whose per-key sliding windows hold at most windowSize
// samples. windowSize <= 0 uses the default of 10,000.
func New(windowSize int) *Store {
	if windowSize <= 0 {
		windowSize = defaultWindowSize
	}
	return &Store{windowSize: windowSize, entries: make(map[string]*entry)}
}

func (s *Store) entryFor(requestType string) *entry {
	s.mu.RLock()
	e, ok := s.entries[requestType]
	s.mu.RUnlock()
	if ok {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[requestType]; ok {
		return e
	}
	e = newEntry(requestType, s.windowSize)
	s.entries[requestType] = e
	return e
}

// Ingest records one execution observation, creating the request type's
// aggregate lazily on first use.
func (s *Store) Ingest(m models.SingleExecution) {
	s.entryFor(m.RequestType).ingest(m, s.windowSize)
}

// RecordCacheOutcome records a cache hit or miss for requestType, feeding the
// cache-hit-ratio field of future snapshots.
func (s *Store) RecordCacheOutcome(requestType string, hit bool) {
	s.entryFor(requestType).recordCacheOutcome(hit)
}

// RecordRepeat records one repeat-access observation for requestType (a call
// whose inputs matched a recent prior call), feeding repeat-request rate.
func (s *Store) RecordRepeat(requestType string) {
	s.entryFor(requestType).recordRepeat()
}

// Snapshot returns the current aggregate for requestType. Unknown types
// return a zero-value snapshot with SampleCount 0.
func (s *Store) Snapshot(requestType string) models.RequestAnalysisSnapshot {
	s.mu.RLock()
	e, ok := s.entries[requestType]
	s.mu.RUnlock()
	if !ok {
		return models.RequestAnalysisSnapshot{RequestType: requestType}
	}
	return e.snapshot()
}

// Snapshots returns a snapshot for every known request type, in no
// particular order.
func (s *Store) Snapshots() []models.RequestAnalysisSnapshot {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]models.RequestAnalysisSnapshot, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.snapshot())
	}
	return out
}

// Enumerate returns the known request-type identifiers.
func (s *Store) Enumerate() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.entries))
	for rt := range s.entries {
		out = append(out, rt)
	}
	return out
}

// Prune removes every request type whose LastActivityTime is before cutoff.
// Returns the number of entries removed.
func (s *Store) Prune(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for rt, e := range s.entries {
		e.mu.Lock()
		last := e.lastActivity
		e.mu.Unlock()
		if last.Before(cutoff) {
			delete(s.entries, rt)
			removed++
		}
	}
	return removed
}

// DatabasePoolUtilization and ThreadPoolUtilization satisfy
// sysmetrics.AnalyticsSource with a fixed placeholder; real deployments wire
// a pool-aware gauge instead. Exposed so the demo pipeline can use the
// Request Analysis Store directly as the sysmetrics analytics source.
func (s *Store) DatabasePoolUtilization() float64 { return 0 }
func (s *Store) ThreadPoolUtilization() float64   { return 0 }
