package models

import "time"

// SystemLoadMetrics is a point-in-time snapshot of system health, either
// freshly measured or served from the load-metrics provider's cache.
type SystemLoadMetrics struct {
	CPUUtilization        float64   `json:"cpu_utilization"`         // [0,1]
	MemoryUtilization      float64   `json:"memory_utilization"`      // >= 0 (fraction of baseline)
	AvailableMemoryBytes   int64     `json:"available_memory_bytes"`  // > 0
	ActiveRequests         int       `json:"active_requests"`         // >= 0
	QueuedRequests         int       `json:"queued_requests"`         // >= 0
	ThroughputPerSecond    float64   `json:"throughput_per_second"`   // >= 0
	AverageResponseTime    time.Duration `json:"average_response_time"` // >= 0
	ErrorRate              float64   `json:"error_rate"`              // [0,1]
	DatabasePoolUtilization float64  `json:"database_pool_utilization"` // [0,1]
	ThreadPoolUtilization  float64   `json:"thread_pool_utilization"` // [0,1]
	Timestamp              time.Time `json:"timestamp"`
}

// Clamp forces every ratio/count field into its documented range in place.
func (m *SystemLoadMetrics) Clamp() {
	m.CPUUtilization = clamp01(m.CPUUtilization)
	m.ErrorRate = clamp01(m.ErrorRate)
	m.DatabasePoolUtilization = clamp01(m.DatabasePoolUtilization)
	m.ThreadPoolUtilization = clamp01(m.ThreadPoolUtilization)
	if m.MemoryUtilization < 0 {
		m.MemoryUtilization = 0
	}
	if m.ActiveRequests < 0 {
		m.ActiveRequests = 0
	}
	if m.QueuedRequests < 0 {
		m.QueuedRequests = 0
	}
	if m.ThroughputPerSecond < 0 {
		m.ThroughputPerSecond = 0
	}
	if m.AverageResponseTime < 0 {
		m.AverageResponseTime = 0
	}
	if m.AvailableMemoryBytes <= 0 {
		m.AvailableMemoryBytes = 1
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// PeakConnectionMetrics tracks monotone connection-count peaks over three
// rolling calendar buckets. AllTime never decreases; Daily/Hourly reset when
// their bucket rolls over (UTC wall clock).
type PeakConnectionMetrics struct {
	AllTimePeak       int       `json:"all_time_peak"`
	DailyPeak         int       `json:"daily_peak"`
	HourlyPeak        int       `json:"hourly_peak"`
	LastPeakTimestamp time.Time `json:"last_peak_timestamp"`
}
