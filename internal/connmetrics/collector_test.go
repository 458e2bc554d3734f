package connmetrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCollector_SumsEstimators(t *testing.T) {
	c := New(map[Category]int{CategoryHTTP: 1000})
	c.AddEstimator(CategoryHTTP, func() int { return 10 })
	c.AddEstimator(CategoryHTTP, func() int { return 5 })
	assert.Equal(t, 15, c.Estimate(CategoryHTTP))
}

func TestCollector_ClampsToMax(t *testing.T) {
	c := New(map[Category]int{CategoryHTTP: 20})
	c.AddEstimator(CategoryHTTP, func() int { return 1000 })
	assert.Equal(t, 20, c.Estimate(CategoryHTTP))
}

func TestCollector_ClampsNegativeToZero(t *testing.T) {
	c := New(map[Category]int{CategoryDB: 100})
	c.AddEstimator(CategoryDB, func() int { return -50 })
	assert.Equal(t, 0, c.Estimate(CategoryDB))
}

func TestCollector_PanickingEstimatorContributesZero(t *testing.T) {
	c := New(map[Category]int{CategoryExternal: 100})
	c.AddEstimator(CategoryExternal, func() int { panic("boom") })
	c.AddEstimator(CategoryExternal, func() int { return 7 })
	assert.Equal(t, 7, c.Estimate(CategoryExternal))
}

func TestCollector_NoEstimatorsIsZero(t *testing.T) {
	c := New(nil)
	assert.Equal(t, 0, c.Estimate(CategoryWebSocket))
}

func TestPeakTracker_MonotoneAllTime(t *testing.T) {
	tr := NewPeakTracker()
	tr.Observe("k", 10)
	tr.Observe("k", 3)
	tr.Observe("k", 7)
	snap := tr.Snapshot("k")
	assert.Equal(t, 10, snap.AllTimePeak)
}

func TestPeakTracker_NegativeClampedToZero(t *testing.T) {
	tr := NewPeakTracker()
	tr.Observe("k", -5)
	snap := tr.Snapshot("k")
	assert.Equal(t, 0, snap.AllTimePeak)
}
