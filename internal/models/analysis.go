package models

import "time"

// RequestAnalysisSnapshot is a read-only view of the Request Analysis Store's
// per-request-type aggregate at the moment Snapshot was called.
type RequestAnalysisSnapshot struct {
	RequestType             string        `json:"request_type"`
	SampleCount              int           `json:"sample_count"`
	AverageExecutionTime     time.Duration `json:"average_execution_time"`
	P50ExecutionTime         time.Duration `json:"p50_execution_time"`
	P95ExecutionTime         time.Duration `json:"p95_execution_time"`
	P99ExecutionTime         time.Duration `json:"p99_execution_time"`
	ConcurrentExecutionPeak  int           `json:"concurrent_execution_peak"`
	ErrorRate                float64       `json:"error_rate"` // [0,1]
	DatabaseCalls            int64         `json:"database_calls"`
	ExternalAPICalls         int64         `json:"external_api_calls"`
	CacheHitRatio            float64       `json:"cache_hit_ratio"` // [0,1]
	RepeatRequestRate        float64       `json:"repeat_request_rate"` // [0,1]
	LastActivityTime         time.Time     `json:"last_activity_time"`
}
