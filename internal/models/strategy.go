package models

// Strategy is an optimization tag the engine can recommend to the pipeline.
type Strategy string

const (
	StrategyNone                    Strategy = "None"
	StrategyCaching                 Strategy = "Caching"
	StrategyEnableCaching           Strategy = "EnableCaching"
	StrategyParallelization         Strategy = "Parallelization"
	StrategyBatching                Strategy = "Batching"
	StrategyLazyLoading             Strategy = "LazyLoading"
	StrategyDatabaseOptimization    Strategy = "DatabaseOptimization"
	StrategyResourcePooling         Strategy = "ResourcePooling"
	StrategyCompressionOptimization Strategy = "CompressionOptimization"
	StrategyMemoryOptimization      Strategy = "MemoryOptimization"
)

// Priority ranks how urgently a recommendation should be acted on.
type Priority string

const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

// Risk estimates the blast radius of automatically applying a recommendation.
type Risk string

const (
	RiskVeryLow  Risk = "VeryLow"
	RiskLow      Risk = "Low"
	RiskMedium   Risk = "Medium"
	RiskHigh     Risk = "High"
	RiskVeryHigh Risk = "VeryHigh"
)

// Scope is where a cached recommendation is keyed.
type Scope string

const (
	ScopeGlobal  Scope = "Global"
	ScopeUser    Scope = "User"
	ScopeSession Scope = "Session"
	ScopeRequest Scope = "Request"
)

// Severity ranks a Bottleneck's urgency.
type Severity string

const (
	SeverityInfo     Severity = "Info"
	SeverityWarning  Severity = "Warning"
	SeverityHigh     Severity = "High"
	SeverityCritical Severity = "Critical"
)

// Grade is a letter performance grade, A (best) through F (worst).
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)
