// Package cleanup implements the Data Cleanup Manager: a periodic sweep
// that prunes stale per-request-type analytics and trims the optimizer's
// prediction queue.
package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
)

// AnalysisStore is the subset of the Request Analysis Store the manager
// prunes.
type AnalysisStore interface {
	Prune(cutoff time.Time) int
}

// PredictionTrimmer is the subset of the Optimization Engine the manager
// uses to bound prediction history.
type PredictionTrimmer interface {
	TrimPredictions(max int) int
}

// Config carries the manager's tunable knobs, sourced from internal/config.
type Config struct {
	Interval        time.Duration
	RetentionWindow time.Duration
	MaxPredictions  int
}

// Manager runs the periodic sweep. Construct with New; call Start to launch
// the background goroutine, Stop to tear it down idempotently.
type Manager struct {
	cfg         Config
	store       AnalysisStore
	predictions PredictionTrimmer
	logger      *slog.Logger

	stopCh   chan struct{}
	stopOnce sync.Once
	doneCh   chan struct{}
}

// New returns a Manager. logger nil falls back to slog.Default(). interval
// <= 0 defaults to 5 minutes; retention <= 0 defaults to 24h; maxPredictions
// <= 0 defaults to 5000.
func New(cfg Config, store AnalysisStore, predictions PredictionTrimmer, logger *slog.Logger) *Manager {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.RetentionWindow <= 0 {
		cfg.RetentionWindow = 24 * time.Hour
	}
	if cfg.MaxPredictions <= 0 {
		cfg.MaxPredictions = 5000
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:         cfg,
		store:       store,
		predictions: predictions,
		logger:      logger,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Start launches the background sweep goroutine, firing every
// cfg.Interval. Safe to call at most once.
func (m *Manager) Start(ctx context.Context) {
	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.runSweep(time.Now())
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop idempotently signals the background goroutine to exit and waits for
// it to finish. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
	})
	<-m.doneCh
}

// runSweep removes analytics entries whose LastActivityTime is before
// now-RetentionWindow and trims the prediction queue to MaxPredictions.
// Edge-case timestamps (time.Time{}, far-future values) fall out naturally
// from the Before(cutoff) comparison: the zero value is always before any
// real cutoff, and a future timestamp is never before it.
func (m *Manager) runSweep(now time.Time) {
	cutoff := now.Add(-m.cfg.RetentionWindow)

	removed := 0
	if m.store != nil {
		removed = m.store.Prune(cutoff)
	}
	if removed > 0 {
		metrics.CleanupRemovedTotal.WithLabelValues("analysis").Add(float64(removed))
		m.logger.Info("cleanup: pruned stale analytics", "removed", removed, "cutoff", cutoff)
	}

	dropped := 0
	if m.predictions != nil {
		dropped = m.predictions.TrimPredictions(m.cfg.MaxPredictions)
	}
	if dropped > 0 {
		metrics.CleanupRemovedTotal.WithLabelValues("predictions").Add(float64(dropped))
		m.logger.Info("cleanup: trimmed prediction history", "dropped", dropped, "max", m.cfg.MaxPredictions)
	}
}

// RunOnce executes one sweep immediately, outside the ticker cadence. Used
// by tests.
func (m *Manager) RunOnce() {
	m.runSweep(time.Now())
}
