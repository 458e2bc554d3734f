// Package sysmetrics computes SystemLoadMetrics snapshots (CPU, memory,
// throughput, error rate, response time, pool utilization) and serves cached
// copies through a provider backed by singleflight, collapsing concurrent
// cache-miss refreshes into one measurement.
package sysmetrics

import (
	"context"
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/ports"
)

const defaultAverageResponseTime = 100 * time.Millisecond

// CPUSampler measures current process/host CPU utilization in [0,1].
// Honors ctx cancellation at its next suspension point.
type CPUSampler func(ctx context.Context) (float64, error)

// Calculator derives a SystemLoadMetrics snapshot from request-analysis
// aggregates and a CPU sample. Stateless aside from its test-only override
// and the optional CPU sample cache.
type Calculator struct {
	sampler  CPUSampler
	capacity int // processors * default concurrency factor, unless overridden

	cpuMu            sync.Mutex
	cpuCacheInterval time.Duration
	lastCPU          float64
	lastCPUAt        time.Time

	testingHooksEnabled bool
	testOverride        map[string]float64
}

// NewCalculator returns a Calculator. A nil sampler always reports 0 CPU
// utilization. capacityOverride <= 0 uses runtime.GOMAXPROCS(0) * 4.
func NewCalculator(sampler CPUSampler, capacityOverride int, testingHooksEnabled bool) *Calculator {
	capacity := capacityOverride
	if capacity <= 0 {
		capacity = runtime.GOMAXPROCS(0) * 4
	}
	return &Calculator{sampler: sampler, capacity: capacity, testingHooksEnabled: testingHooksEnabled}
}

// EnableCPUCache makes CPU measurements reuse the previous sample while it
// is younger than interval, so frequent snapshot requests don't pay for a
// fresh measurement each time. interval <= 0 uses 200ms.
func (c *Calculator) EnableCPUCache(interval time.Duration) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	c.cpuMu.Lock()
	c.cpuCacheInterval = interval
	c.cpuMu.Unlock()
}

// SetTestMetrics installs an override map consulted by Compute instead of
// live measurement. No-op unless TestingHooksEnabled was set at
// construction; this is the explicit seam replacing reflection-based test
// hooks. Recognized keys: "cpu_utilization", "memory_utilization",
// "database_pool_utilization", "thread_pool_utilization".
func (c *Calculator) SetTestMetrics(overrides map[string]float64) {
	if !c.testingHooksEnabled {
		return
	}
	c.testOverride = overrides
}

// Compute produces a fresh snapshot. analytics may be empty (no observed
// request types yet); dbPoolUtil/threadPoolUtil are caller-supplied
// pool-gauge readings. counter, if non-nil, overrides the heuristic
// active/queued estimate derived from analytics.
func (c *Calculator) Compute(ctx context.Context, analytics []models.RequestAnalysisSnapshot, dbPoolUtil, threadPoolUtil float64, counter ports.SystemLoadCounter) models.SystemLoadMetrics {
	cpu := c.cpuUtilization(ctx)
	mem := c.memoryUtilization()

	throughput, errorRate, avgResponse := c.throughputErrorLatency(analytics)
	active, queued := c.activeQueued(analytics, counter)

	m := models.SystemLoadMetrics{
		CPUUtilization:          cpu,
		MemoryUtilization:       mem,
		AvailableMemoryBytes:    availableMemoryBytes(),
		ActiveRequests:          active,
		QueuedRequests:          queued,
		ThroughputPerSecond:     throughput,
		AverageResponseTime:     avgResponse,
		ErrorRate:               errorRate,
		DatabasePoolUtilization: dbPoolUtil,
		ThreadPoolUtilization:   threadPoolUtil,
		Timestamp:               time.Now(),
	}
	if v, ok := c.override("database_pool_utilization"); ok {
		m.DatabasePoolUtilization = v
	}
	if v, ok := c.override("thread_pool_utilization"); ok {
		m.ThreadPoolUtilization = v
	}
	m.Clamp()
	return m
}

func (c *Calculator) override(key string) (float64, bool) {
	if !c.testingHooksEnabled || c.testOverride == nil {
		return 0, false
	}
	v, ok := c.testOverride[key]
	return v, ok
}

func (c *Calculator) cpuUtilization(ctx context.Context) float64 {
	if v, ok := c.override("cpu_utilization"); ok {
		return v
	}
	if c.sampler == nil {
		return 0
	}
	c.cpuMu.Lock()
	if c.cpuCacheInterval > 0 && time.Since(c.lastCPUAt) < c.cpuCacheInterval {
		v := c.lastCPU
		c.cpuMu.Unlock()
		return v
	}
	c.cpuMu.Unlock()
	select {
	case <-ctx.Done():
		return 0
	default:
	}
	v, err := c.sampler(ctx)
	if err != nil {
		return 0
	}
	c.cpuMu.Lock()
	if c.cpuCacheInterval > 0 {
		c.lastCPU = v
		c.lastCPUAt = time.Now()
	}
	c.cpuMu.Unlock()
	return v
}

func (c *Calculator) memoryUtilization() float64 {
	if v, ok := c.override("memory_utilization"); ok {
		return v
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	baseline := float64(int64(4) << 30) // 4GiB, matches config.BaselineMemoryBytes default
	if baseline <= 0 {
		return 0
	}
	return float64(ms.Alloc) / baseline
}

func availableMemoryBytes() int64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	avail := int64(ms.Sys) - int64(ms.Alloc)
	if avail <= 0 {
		return 1
	}
	return avail
}

func (c *Calculator) throughputErrorLatency(analytics []models.RequestAnalysisSnapshot) (throughput, errorRate float64, avgResponse time.Duration) {
	if len(analytics) == 0 {
		return 0, 0, defaultAverageResponseTime
	}
	var totalSamples float64
	var totalErrors float64
	var weightedDuration time.Duration
	for _, a := range analytics {
		n := float64(a.SampleCount)
		totalSamples += n
		totalErrors += a.ErrorRate * n
		weightedDuration += time.Duration(float64(a.AverageExecutionTime) * n)
	}
	if totalSamples == 0 {
		return 0, 0, defaultAverageResponseTime
	}
	throughput = totalSamples
	errorRate = totalErrors / totalSamples
	avgResponse = time.Duration(float64(weightedDuration) / totalSamples)
	return throughput, errorRate, avgResponse
}

func (c *Calculator) activeQueued(analytics []models.RequestAnalysisSnapshot, counter ports.SystemLoadCounter) (active, queued int) {
	if counter != nil {
		return nonNegative(counter.ActiveCount()), nonNegative(counter.QueuedCount())
	}
	if len(analytics) == 0 {
		return 0, 0
	}
	sum := 0
	for _, a := range analytics {
		sum += a.ConcurrentExecutionPeak
	}
	active = int(math.Round(float64(sum) / float64(len(analytics))))
	queued = sum - c.capacity
	if queued < 0 {
		queued = 0
	}
	return nonNegative(active), queued
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
