package connmetrics

import (
	"sync"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"

	"github.com/kubilitics-labs/reqopt/internal/pkg/metrics"
)

// bucketedPeak tracks one key's all-time/daily/hourly peaks. Updated under a
// per-key mutex so readers always observe a consistent struct (never a torn
// update across the three peak fields).
type bucketedPeak struct {
	mu sync.Mutex

	allTime int
	daily   int
	hourly  int
	day     int // YYYYMMDD (UTC)
	hour    int // YYYYMMDDHH (UTC)
	last    time.Time
}

// PeakTracker holds one bucketedPeak per key. Safe for concurrent use; Observe
// may be called concurrently for the same or different keys.
type PeakTracker struct {
	mu    sync.Mutex
	peaks map[string]*bucketedPeak
}

// NewPeakTracker returns an empty tracker.
func NewPeakTracker() *PeakTracker {
	return &PeakTracker{peaks: make(map[string]*bucketedPeak)}
}

func (t *PeakTracker) peakFor(key string) *bucketedPeak {
	t.mu.Lock()
	defer t.mu.Unlock()
	p, ok := t.peaks[key]
	if !ok {
		p = &bucketedPeak{}
		t.peaks[key] = p
	}
	return p
}

func dayBucket(ts time.Time) int {
	u := ts.UTC()
	return u.Year()*10000 + int(u.Month())*100 + u.Day()
}

func hourBucket(ts time.Time) int {
	return dayBucket(ts)*100 + ts.UTC().Hour()
}

// Observe records one sample for key, updating all-time/daily/hourly peaks.
// All-time never decreases; daily/hourly reset to the new value when their
// calendar bucket rolls over (UTC wall clock). Never panics.
func (t *PeakTracker) Observe(key string, value int) {
	if value < 0 {
		value = 0
	}
	p := t.peakFor(key)
	now := time.Now()
	d, h := dayBucket(now), hourBucket(now)

	p.mu.Lock()
	defer p.mu.Unlock()

	if value > p.allTime {
		p.allTime = value
	}
	if d != p.day {
		p.day = d
		p.daily = value
	} else if value > p.daily {
		p.daily = value
	}
	if h != p.hour {
		p.hour = h
		p.hourly = value
	} else if value > p.hourly {
		p.hourly = value
	}
	p.last = now

	metrics.ConnectionsActive.WithLabelValues(key).Set(float64(value))
	metrics.ConnectionsPeak.WithLabelValues(key, "all_time").Set(float64(p.allTime))
	metrics.ConnectionsPeak.WithLabelValues(key, "daily").Set(float64(p.daily))
	metrics.ConnectionsPeak.WithLabelValues(key, "hourly").Set(float64(p.hourly))
}

// Snapshot returns a consistent copy of the peaks for key (zero value if
// never observed).
func (t *PeakTracker) Snapshot(key string) models.PeakConnectionMetrics {
	p := t.peakFor(key)
	p.mu.Lock()
	defer p.mu.Unlock()
	return models.PeakConnectionMetrics{
		AllTimePeak:       p.allTime,
		DailyPeak:         p.daily,
		HourlyPeak:        p.hourly,
		LastPeakTimestamp: p.last,
	}
}
