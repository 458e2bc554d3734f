package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

func exec(requestType string, d time.Duration, success bool) models.SingleExecution {
	return models.SingleExecution{
		RequestType: requestType,
		Success:     success,
		Duration:    d,
		Timestamp:   time.Now(),
	}
}

func TestStore_UnknownTypeReturnsZeroSnapshot(t *testing.T) {
	s := New(0)
	snap := s.Snapshot("nope")
	assert.Equal(t, "nope", snap.RequestType)
	assert.Equal(t, 0, snap.SampleCount)
}

func TestStore_IngestAccumulatesSamples(t *testing.T) {
	s := New(0)
	s.Ingest(exec("get_user", 10*time.Millisecond, true))
	s.Ingest(exec("get_user", 20*time.Millisecond, true))
	s.Ingest(exec("get_user", 30*time.Millisecond, false))

	snap := s.Snapshot("get_user")
	assert.Equal(t, 3, snap.SampleCount)
	assert.InDelta(t, 1.0/3.0, snap.ErrorRate, 1e-9)
	assert.Equal(t, 20*time.Millisecond, snap.AverageExecutionTime)
}

func TestStore_WindowIsBounded(t *testing.T) {
	s := New(5)
	for i := 0; i < 20; i++ {
		s.Ingest(exec("hot", time.Duration(i)*time.Millisecond, true))
	}
	snap := s.Snapshot("hot")
	assert.Equal(t, 5, snap.SampleCount)
}

func TestStore_CacheOutcomeRatio(t *testing.T) {
	s := New(0)
	s.RecordCacheOutcome("list", true)
	s.RecordCacheOutcome("list", true)
	s.RecordCacheOutcome("list", false)
	snap := s.Snapshot("list")
	assert.InDelta(t, 2.0/3.0, snap.CacheHitRatio, 1e-9)
}

func TestStore_RepeatRateRequiresIngest(t *testing.T) {
	s := New(0)
	s.Ingest(exec("search", time.Millisecond, true))
	s.Ingest(exec("search", time.Millisecond, true))
	s.RecordRepeat("search")
	snap := s.Snapshot("search")
	assert.InDelta(t, 0.5, snap.RepeatRequestRate, 1e-9)
}

func TestStore_ConcurrentPeakTracksMax(t *testing.T) {
	s := New(0)
	e1 := exec("batch", time.Millisecond, true)
	e1.ConcurrentExecutions = 4
	e2 := exec("batch", time.Millisecond, true)
	e2.ConcurrentExecutions = 9
	e3 := exec("batch", time.Millisecond, true)
	e3.ConcurrentExecutions = 2
	s.Ingest(e1)
	s.Ingest(e2)
	s.Ingest(e3)
	assert.Equal(t, 9, s.Snapshot("batch").ConcurrentExecutionPeak)
}

func TestStore_EnumerateAndSnapshots(t *testing.T) {
	s := New(0)
	s.Ingest(exec("a", time.Millisecond, true))
	s.Ingest(exec("b", time.Millisecond, true))
	assert.ElementsMatch(t, []string{"a", "b"}, s.Enumerate())
	assert.Len(t, s.Snapshots(), 2)
}

func TestStore_PruneRemovesStaleByLastActivity(t *testing.T) {
	s := New(0)
	stale := exec("old", time.Millisecond, true)
	stale.Timestamp = time.Now().Add(-48 * time.Hour)
	fresh := exec("new", time.Millisecond, true)
	fresh.Timestamp = time.Now()
	s.Ingest(stale)
	s.Ingest(fresh)

	removed := s.Prune(time.Now().Add(-24 * time.Hour))
	assert.Equal(t, 1, removed)
	assert.ElementsMatch(t, []string{"new"}, s.Enumerate())
}

func TestStore_PruneNothingWhenAllFresh(t *testing.T) {
	s := New(0)
	s.Ingest(exec("a", time.Millisecond, true))
	removed := s.Prune(time.Now().Add(-time.Hour))
	assert.Equal(t, 0, removed)
}

func TestStore_LastActivityIsMonotonicWithinKey(t *testing.T) {
	s := New(0)
	first := exec("k", time.Millisecond, true)
	first.Timestamp = time.Now()
	later := exec("k", time.Millisecond, true)
	later.Timestamp = first.Timestamp.Add(time.Second)
	earlierAgain := exec("k", time.Millisecond, true)
	earlierAgain.Timestamp = first.Timestamp

	s.Ingest(first)
	s.Ingest(later)
	s.Ingest(earlierAgain)

	assert.Equal(t, later.Timestamp, s.Snapshot("k").LastActivityTime)
}

func TestStore_PercentilesAreNonDecreasing(t *testing.T) {
	s := New(0)
	for i := 1; i <= 100; i++ {
		s.Ingest(exec("latency", time.Duration(i)*time.Millisecond, true))
	}
	snap := s.Snapshot("latency")
	assert.LessOrEqual(t, snap.P50ExecutionTime, snap.P95ExecutionTime)
	assert.LessOrEqual(t, snap.P95ExecutionTime, snap.P99ExecutionTime)
}
