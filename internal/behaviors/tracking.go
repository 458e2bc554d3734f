package behaviors

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
	"github.com/kubilitics-labs/reqopt/internal/pkg/tracing"
	"github.com/kubilitics-labs/reqopt/internal/ports"
)

const defaultSlidingWindowSize = 10000

type trackedSample struct {
	at       time.Time
	duration time.Duration
	success  bool
}

// PerformanceTrackingBehavior maintains a bounded sliding window of
// (duration, success) per request type and exports rolling ExecutionMetrics
// periodically and/or whenever a request type's window holds exactly
// ImmediateExportThreshold samples. The count is the window length, not a
// count since the last export: with ResetAfterExport a successful export
// empties the window so the next immediate export follows after another
// ImmediateExportThreshold samples; without it the window keeps its samples
// and the immediate export fires only when the window first reaches that
// size. Export
// failures are logged, never propagated: a broken metrics sink must not fail
// requests.
type PerformanceTrackingBehavior struct {
	Config   TrackingConfig
	Exporter ports.MetricsExporter
	Logger   *slog.Logger

	mu      sync.Mutex
	windows map[string][]trackedSample

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPerformanceTrackingBehavior wires a behavior and, if periodic export is
// enabled, starts its background export loop. Callers must call Dispose to
// stop it.
func NewPerformanceTrackingBehavior(cfg TrackingConfig, exporter ports.MetricsExporter, logger *slog.Logger) *PerformanceTrackingBehavior {
	if logger == nil {
		logger = slog.Default()
	}
	b := &PerformanceTrackingBehavior{
		Config:   cfg,
		Exporter: exporter,
		Logger:   logger,
		windows:  make(map[string][]trackedSample),
		stopCh:   make(chan struct{}),
	}
	if cfg.EnableTracking && cfg.EnablePeriodicExport && cfg.ExportInterval > 0 {
		b.wg.Add(1)
		go b.exportLoop()
	}
	return b
}

func (b *PerformanceTrackingBehavior) Handle(ctx context.Context, req ports.Request, next ports.Next) (any, error) {
	if !b.Config.EnableTracking {
		return next(ctx)
	}
	ctx, span := tracing.StartSpan(ctx, "behaviors.PerformanceTrackingBehavior")
	defer span.End()

	start := time.Now()
	resp, err := next(ctx)
	duration := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.RequestsTotal.WithLabelValues(req.Type, outcome).Inc()
	metrics.RequestDurationSeconds.WithLabelValues(req.Type).Observe(duration.Seconds())

	if b.Config.EnableDetailedLogging {
		b.Logger.Debug("request tracked", "request_type", req.Type, "duration", duration, "success", err == nil)
	}

	crossedThreshold := b.record(req.Type, duration, err == nil)
	if crossedThreshold && b.Config.EnableImmediateExport {
		b.exportRequestType(ctx, req.Type)
	}

	return resp, err
}

// record appends a sample to requestType's window, trims it to
// SlidingWindowSize, and reports whether the window has just reached
// ImmediateExportThreshold observations.
func (b *PerformanceTrackingBehavior) record(requestType string, duration time.Duration, success bool) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	limit := b.Config.SlidingWindowSize
	if limit <= 0 {
		limit = defaultSlidingWindowSize
	}
	w := append(b.windows[requestType], trackedSample{at: time.Now(), duration: duration, success: success})
	if len(w) > limit {
		w = w[len(w)-limit:]
	}
	b.windows[requestType] = w

	threshold := b.Config.ImmediateExportThreshold
	return threshold > 0 && len(w) == threshold
}

// buildMetrics snapshots requestType's window into ExecutionMetrics. Returns
// false if the window is empty. The window itself is untouched; resetting
// after export is the exporter path's job so that a failed export never
// discards samples.
func (b *PerformanceTrackingBehavior) buildMetrics(requestType string) (models.ExecutionMetrics, bool) {
	b.mu.Lock()
	w := append([]trackedSample(nil), b.windows[requestType]...)
	b.mu.Unlock()
	return summarizeWindow(requestType, w, b.Config.TrackPercentiles)
}

func summarizeWindow(requestType string, w []trackedSample, trackPercentiles bool) (models.ExecutionMetrics, bool) {
	if len(w) == 0 {
		return models.ExecutionMetrics{}, false
	}

	durations := make([]time.Duration, len(w))
	var sum time.Duration
	var successful int64
	earliest, latest := w[0].at, w[0].at
	for i, s := range w {
		durations[i] = s.duration
		sum += s.duration
		if s.success {
			successful++
		}
		if s.at.Before(earliest) {
			earliest = s.at
		}
		if s.at.After(latest) {
			latest = s.at
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	total := int64(len(w))
	m := models.ExecutionMetrics{
		RequestType:          requestType,
		TotalExecutions:      total,
		SuccessfulExecutions: successful,
		FailedExecutions:     total - successful,
		AverageExecutionTime: sum / time.Duration(total),
		MedianExecutionTime:  percentile(durations, 0.5),
		SamplePeriod:         latest.Sub(earliest),
		LastExecutionTime:    latest,
	}
	if trackPercentiles {
		m.P95ExecutionTime = percentile(durations, 0.95)
		m.P99ExecutionTime = percentile(durations, 0.99)
	} else {
		m.P95ExecutionTime = m.MedianExecutionTime
		m.P99ExecutionTime = m.MedianExecutionTime
	}
	return m, true
}

// percentile returns the p-th percentile (p in [0,1]) of a pre-sorted
// ascending slice using a nearest-rank ceiling index.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p*float64(len(sorted))+0.999999) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// exportRequestType exports requestType's current window. When
// ResetAfterExport is set, the exported samples are removed only after the
// exporter returns success, so a failed export leaves them in place for the
// next attempt; samples recorded concurrently during the export survive the
// reset.
func (b *PerformanceTrackingBehavior) exportRequestType(ctx context.Context, requestType string) {
	if b.Exporter == nil {
		return
	}
	b.mu.Lock()
	w := append([]trackedSample(nil), b.windows[requestType]...)
	b.mu.Unlock()
	m, ok := summarizeWindow(requestType, w, b.Config.TrackPercentiles)
	if !ok {
		return
	}
	if err := b.Exporter.ExportMetrics(ctx, m); err != nil {
		b.Logger.Warn("metrics export failed", "request_type", requestType, "error", err)
		return
	}
	if !b.Config.ResetAfterExport {
		return
	}
	b.mu.Lock()
	cur := b.windows[requestType]
	if len(cur) > len(w) {
		b.windows[requestType] = append([]trackedSample(nil), cur[len(w):]...)
	} else {
		delete(b.windows, requestType)
	}
	b.mu.Unlock()
}

func (b *PerformanceTrackingBehavior) exportAll(ctx context.Context) {
	b.mu.Lock()
	types := make([]string, 0, len(b.windows))
	for rt := range b.windows {
		types = append(types, rt)
	}
	b.mu.Unlock()
	for _, rt := range types {
		b.exportRequestType(ctx, rt)
	}
}

func (b *PerformanceTrackingBehavior) exportLoop() {
	defer b.wg.Done()
	ticker := time.NewTicker(b.Config.ExportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stopCh:
			return
		case <-ticker.C:
			b.exportAll(context.Background())
		}
	}
}

// Dispose stops the background export loop, if running, and blocks until it
// has exited. Safe to call more than once.
func (b *PerformanceTrackingBehavior) Dispose() {
	b.stopOnce.Do(func() { close(b.stopCh) })
	b.wg.Wait()
}
