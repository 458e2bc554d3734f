package sysmetrics

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/ports"
)

// AnalyticsSource supplies the Request Analysis Store's current per-type
// snapshots and the live pool-utilization gauges the calculator needs.
type AnalyticsSource interface {
	Snapshots() []models.RequestAnalysisSnapshot
	DatabasePoolUtilization() float64
	ThreadPoolUtilization() float64
}

// ProviderOptions carries the load metrics provider's tunables.
type ProviderOptions struct {
	EnableCaching            bool
	CacheTTL                 time.Duration
	CacheRefreshInterval     time.Duration
	UseCachedCPUMeasurements bool
	CPUMeasurementInterval   time.Duration
	Counter                  ports.SystemLoadCounter
}

// Provider serves cached SystemLoadMetrics snapshots, refreshing via a
// background goroutine when enabled and collapsing concurrent cache-miss
// refreshes with singleflight so a thundering herd of callers triggers one
// measurement, not N.
type Provider struct {
	calc    *Calculator
	src     AnalyticsSource
	opts    ProviderOptions
	sf      singleflight.Group

	mu       sync.RWMutex
	cached   models.SystemLoadMetrics
	cachedAt time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewProvider returns a Provider. Call Start to begin background refresh
// when opts.EnableCaching is set; Stop releases it idempotently.
func NewProvider(calc *Calculator, src AnalyticsSource, opts ProviderOptions) *Provider {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Second
	}
	if opts.CacheRefreshInterval <= 0 {
		opts.CacheRefreshInterval = 10 * time.Second
	}
	if opts.UseCachedCPUMeasurements && calc != nil {
		calc.EnableCPUCache(opts.CPUMeasurementInterval)
	}
	return &Provider{calc: calc, src: src, opts: opts, stopCh: make(chan struct{})}
}

// Start launches the background refresher. Safe to call at most once; no-op
// when caching is disabled.
func (p *Provider) Start(ctx context.Context) {
	if !p.opts.EnableCaching {
		return
	}
	go func() {
		ticker := time.NewTicker(p.opts.CacheRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				p.refresh(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop idempotently halts the background refresher.
func (p *Provider) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// GetCurrentLoad returns the current SystemLoadMetrics. When caching is
// disabled, every call produces a fresh snapshot with a distinct timestamp.
// When enabled, a cached snapshot within TTL is returned; on expiry a single
// refresh is performed even if many goroutines call concurrently.
func (p *Provider) GetCurrentLoad(ctx context.Context) models.SystemLoadMetrics {
	if !p.opts.EnableCaching {
		return p.measure(ctx)
	}

	p.mu.RLock()
	fresh := time.Since(p.cachedAt) < p.opts.CacheTTL
	snap := p.cached
	p.mu.RUnlock()
	if fresh {
		return snap
	}
	return p.refresh(ctx)
}

func (p *Provider) refresh(ctx context.Context) models.SystemLoadMetrics {
	v, _, _ := p.sf.Do("refresh", func() (interface{}, error) {
		m := p.measure(ctx)
		p.mu.Lock()
		p.cached = m
		p.cachedAt = time.Now()
		p.mu.Unlock()
		return m, nil
	})
	return v.(models.SystemLoadMetrics)
}

func (p *Provider) measure(ctx context.Context) models.SystemLoadMetrics {
	var snapshots []models.RequestAnalysisSnapshot
	var dbPool, threadPool float64
	if p.src != nil {
		snapshots = p.src.Snapshots()
		dbPool = p.src.DatabasePoolUtilization()
		threadPool = p.src.ThreadPoolUtilization()
	}
	return p.calc.Compute(ctx, snapshots, dbPool, threadPool, p.opts.Counter)
}
