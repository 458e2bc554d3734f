// Package connmetrics estimates active connection counts (HTTP, database,
// external service, websocket/SSE) from a composition of independent
// estimator closures, and tracks monotone peaks per calendar bucket
// (all-time, daily, hourly).
package connmetrics

import (
	"runtime"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// Estimator computes one component's contribution to a connection-count
// category. A panicking estimator contributes zero; it never brings down the
// collector.
type Estimator func() int

// Category enumerates the four connection kinds the collector estimates.
type Category string

const (
	CategoryHTTP      Category = "http"
	CategoryDB        Category = "db"
	CategoryExternal  Category = "external"
	CategoryWebSocket Category = "websocket"
)

// Collector composes estimators per category and clamps the summed result to
// a configured maximum.
type Collector struct {
	maxByCategory map[Category]int
	estimators     map[Category][]Estimator

	peaks *PeakTracker
}

// New returns a Collector with the given per-category maximums. Missing
// entries default to a generous ceiling (10000).
func New(maxByCategory map[Category]int) *Collector {
	c := &Collector{
		maxByCategory: make(map[Category]int, len(maxByCategory)),
		estimators:    make(map[Category][]Estimator),
		peaks:         NewPeakTracker(),
	}
	for cat, max := range maxByCategory {
		c.maxByCategory[cat] = max
	}
	return c
}

// AddEstimator registers one contribution to a category's total. Order does
// not matter; contributions are summed.
func (c *Collector) AddEstimator(cat Category, est Estimator) {
	c.estimators[cat] = append(c.estimators[cat], est)
}

// Estimate sums every registered estimator for cat, clamps to [0, max], and
// records the result against the peak tracker for that category. A panicking
// estimator contributes zero and is otherwise ignored. For CategoryHTTP, when
// no estimator is registered or every one panics, DefaultHTTPFallback() is
// used as the total.
func (c *Collector) Estimate(cat Category) int {
	total := 0
	succeeded := 0
	for _, est := range c.estimators[cat] {
		if v, ok := safeCall(est); ok {
			total += v
			succeeded++
		}
	}
	if succeeded == 0 && cat == CategoryHTTP {
		total = DefaultHTTPFallback()
	}
	if total < 0 {
		total = 0
	}
	max := c.maxByCategory[cat]
	if max <= 0 {
		max = 10000
	}
	if total > max {
		total = max
	}
	c.peaks.Observe(string(cat), total)
	return total
}

func safeCall(est Estimator) (result int, ok bool) {
	defer func() {
		if recover() != nil {
			result, ok = 0, false
		}
	}()
	return est(), true
}

// Peaks returns the current peak snapshot for cat.
func (c *Collector) Peaks(cat Category) models.PeakConnectionMetrics {
	return c.peaks.Snapshot(string(cat))
}

// DefaultHTTPFallback is the safe fallback used when no HTTP estimators are
// registered or all of them fail: processors * 4.
func DefaultHTTPFallback() int {
	return runtime.GOMAXPROCS(0) * 4
}
