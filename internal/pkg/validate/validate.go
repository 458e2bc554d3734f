// Package validate provides input validation for identifiers accepted at the
// pipeline boundary: request types and the enumerated strategy/priority/
// risk/scope tags.
package validate

import (
	"regexp"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// RequestTypeMaxLen is the maximum allowed length for a request type
// identifier.
const RequestTypeMaxLen = 128

// requestTypeRe matches a conservative identifier subset: alphanumeric,
// hyphen, underscore, dot, forward slash, colon and space (for route-shaped
// request types like "GET /orders/:id").
var requestTypeRe = regexp.MustCompile(`^[A-Za-z0-9_/:.\- ]+$`)

// RequestType validates a request-type identifier: non-empty, bounded length,
// restricted character set.
func RequestType(rt string) bool {
	if rt == "" || len(rt) > RequestTypeMaxLen {
		return false
	}
	return requestTypeRe.MatchString(rt)
}

// Strategy reports whether s is one of the known optimization strategies.
func Strategy(s models.Strategy) bool {
	switch s {
	case models.StrategyNone, models.StrategyCaching, models.StrategyEnableCaching,
		models.StrategyParallelization, models.StrategyBatching, models.StrategyLazyLoading,
		models.StrategyDatabaseOptimization, models.StrategyResourcePooling,
		models.StrategyCompressionOptimization, models.StrategyMemoryOptimization:
		return true
	default:
		return false
	}
}

// Priority reports whether p is one of the known priority levels.
func Priority(p models.Priority) bool {
	switch p {
	case models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityCritical:
		return true
	default:
		return false
	}
}

// Risk reports whether r is one of the known risk levels.
func Risk(r models.Risk) bool {
	switch r {
	case models.RiskVeryLow, models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskVeryHigh:
		return true
	default:
		return false
	}
}

// Scope reports whether s is one of the known recommendation cache scopes.
func Scope(s models.Scope) bool {
	switch s {
	case models.ScopeGlobal, models.ScopeUser, models.ScopeSession, models.ScopeRequest:
		return true
	default:
		return false
	}
}

// Confidence reports whether v lies in the valid confidence range [0,1].
func Confidence(v float64) bool {
	return v >= 0 && v <= 1
}

// ExecutionMetrics reports whether m satisfies its documented invariants.
func ExecutionMetrics(m models.ExecutionMetrics) bool {
	return m.Valid() && RequestType(m.RequestType)
}
