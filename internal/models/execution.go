package models

import "time"

// ExecutionMetrics is one observation of a downstream handler invocation for a
// given request type. Invariant: Successful+Failed == TotalExecutions; every
// duration field is >= 0.
type ExecutionMetrics struct {
	RequestType          string        `json:"request_type"`
	TotalExecutions       int64         `json:"total_executions"`
	SuccessfulExecutions  int64         `json:"successful_executions"`
	FailedExecutions      int64         `json:"failed_executions"`
	AverageExecutionTime  time.Duration `json:"average_execution_time"`
	MedianExecutionTime   time.Duration `json:"median_execution_time"`
	P95ExecutionTime      time.Duration `json:"p95_execution_time"`
	P99ExecutionTime      time.Duration `json:"p99_execution_time"`
	ConcurrentExecutions  int           `json:"concurrent_executions"`
	MemoryAllocatedBytes  int64         `json:"memory_allocated_bytes"`
	SamplePeriod          time.Duration `json:"sample_period"`
	LastExecutionTime     time.Time     `json:"last_execution_time"`
	CPUUsagePercent       float64       `json:"cpu_usage_percent"`
	DatabaseCalls         int           `json:"database_calls"`
	ExternalAPICalls      int           `json:"external_api_calls"`
}

// Valid reports whether the invariant Successful+Failed == Total holds and no
// duration field is negative.
func (m ExecutionMetrics) Valid() bool {
	if m.SuccessfulExecutions+m.FailedExecutions != m.TotalExecutions {
		return false
	}
	if m.AverageExecutionTime < 0 || m.MedianExecutionTime < 0 ||
		m.P95ExecutionTime < 0 || m.P99ExecutionTime < 0 || m.SamplePeriod < 0 {
		return false
	}
	return true
}

// SingleExecution is one observed execution, with Success reporting whether
// it succeeded (used by callers that observe one execution at a time, e.g.
// the optimizer feeding the Request Analysis Store).
type SingleExecution struct {
	RequestType          string
	Success              bool
	Duration             time.Duration
	MemoryAllocatedBytes int64
	ConcurrentExecutions int
	CPUUsagePercent      float64
	DatabaseCalls        int
	ExternalAPICalls     int
	Timestamp            time.Time
}
