package models

import "time"

// OptimizationRecommendation is the engine's advice to the pipeline for one
// request. Invariant: Strategy == StrategyNone implies Priority == PriorityLow
// and EstimatedGainPercent == 0.
type OptimizationRecommendation struct {
	Strategy               Strategy      `json:"strategy"`
	Confidence             float64       `json:"confidence"` // [0,1]
	EstimatedImprovement   time.Duration `json:"estimated_improvement"`
	Reasoning              string        `json:"reasoning"`
	Priority               Priority      `json:"priority"`
	Risk                   Risk          `json:"risk"`
	EstimatedGainPercent   float64       `json:"estimated_gain_percent"`
}

// None is the zero-effect recommendation returned when no pattern clears the
// confidence bar.
func None(reasoning string) OptimizationRecommendation {
	return OptimizationRecommendation{
		Strategy:             StrategyNone,
		Confidence:           0,
		Reasoning:            reasoning,
		Priority:             PriorityLow,
		Risk:                 RiskVeryLow,
		EstimatedGainPercent: 0,
	}
}

// Valid enforces the None/Low/zero-gain invariant.
func (r OptimizationRecommendation) Valid() bool {
	if r.Strategy == StrategyNone {
		return r.Priority == PriorityLow && r.EstimatedGainPercent == 0
	}
	return true
}

// CachingRecommendation is the engine's verdict on whether and how long to
// cache responses for a request type, given observed access patterns.
type CachingRecommendation struct {
	ShouldCache     bool          `json:"should_cache"`
	TTL             time.Duration `json:"ttl"`
	Scope           Scope         `json:"scope"`
	PredictedHitRate float64      `json:"predicted_hit_rate"`
	Reasoning       string        `json:"reasoning"`
}

// PredictionResult records what the engine predicted for a request and what
// actually happened, feeding the Pattern Recognition Engine's retraining.
type PredictionResult struct {
	RequestType         string          `json:"request_type"`
	PredictedStrategies []Strategy      `json:"predicted_strategies"`
	ActualImprovement   time.Duration   `json:"actual_improvement"`
	Timestamp           time.Time       `json:"timestamp"`
	Metrics             ExecutionMetrics `json:"metrics"`
}

// Bottleneck is a metric that has crossed a saturation threshold.
type Bottleneck struct {
	Component   string   `json:"component"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Opportunity is a metric indicating unexploited headroom.
type Opportunity struct {
	Title       string   `json:"title"`
	Priority    Priority `json:"priority"`
	Description string   `json:"description"`
}

// SystemPerformanceInsights is the engine's aggregate report over a window.
type SystemPerformanceInsights struct {
	AnalysisPeriod  time.Duration            `json:"analysis_period"`
	AnalysisTime    time.Time                `json:"analysis_time"`
	HealthScore     float64                  `json:"health_score"` // [0,1]
	PerformanceGrade Grade                   `json:"performance_grade"`
	Bottlenecks     []Bottleneck             `json:"bottlenecks"`
	Opportunities   []Opportunity            `json:"opportunities"`
	Predictions     []PredictionResult       `json:"predictions"`
	KeyMetrics      map[string]float64       `json:"key_metrics"`
}

// ModelStats summarizes the Pattern Recognition Engine's current health,
// the input to model validation.
type ModelStats struct {
	Accuracy              float64       `json:"accuracy"`
	F1Score               float64       `json:"f1_score"`
	TrainingDataPoints    int           `json:"training_data_points"`
	LastRetrainingTime    time.Time     `json:"last_retraining_time"`
	AveragePredictionTime time.Duration `json:"average_prediction_time"`
	SkippedPredictions    int           `json:"skipped_predictions"`
	TotalPredictions      int           `json:"total_predictions"`
}

// IssueKind enumerates Validation Framework findings.
type IssueKind string

const (
	IssueLowAccuracy            IssueKind = "LowAccuracy"
	IssueInconsistentPredictions IssueKind = "InconsistentPredictions"
	IssueInsufficientData       IssueKind = "InsufficientData"
	IssueStaleModel             IssueKind = "StaleModel"
	IssueSlowPredictions        IssueKind = "SlowPredictions"
)

// IssueSeverity ranks a ValidationIssue.
type IssueSeverity string

const (
	IssueSeverityWarning IssueSeverity = "Warning"
	IssueSeverityError   IssueSeverity = "Error"
)

// ValidationIssue is one finding from ValidateModelPerformance.
type ValidationIssue struct {
	Kind        IssueKind     `json:"kind"`
	Severity    IssueSeverity `json:"severity"`
	Description string        `json:"description"`
}

// ValidationResult is the Validation Framework's verdict on model health.
type ValidationResult struct {
	IsHealthy    bool              `json:"is_healthy"`
	OverallScore float64           `json:"overall_score"` // [0,1]
	Issues       []ValidationIssue `json:"issues"`
}
