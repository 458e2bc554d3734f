package optimizer

import (
	"math"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// The helpers in this file are lightweight, deterministic hyperparameter
// estimators: pure functions consulted by pattern retraining, never a heavy
// statistical/neural training loop. Each returns a safe default when the
// caller has no live SystemLoadMetrics to consult.

// OptimalEpochs returns a training-epoch count for a pattern-weight update of
// dataSize samples. Defaults to 100 when metrics is nil; grows with
// dataSize; shrinks as the system's thread-pool utilization (a proxy for
// current model complexity / contention) rises.
func OptimalEpochs(dataSize int, metrics *models.SystemLoadMetrics) int {
	if metrics == nil {
		return 100
	}
	base := 100.0 + float64(dataSize)/1000.0*10.0
	base -= metrics.ThreadPoolUtilization * 30.0
	return clampInt(int(math.Round(base)), 10, 500)
}

// RegularizationStrength increases with overfittingRisk (clamped to [0,1]
// by the caller's convention; out-of-range values are tolerated and simply
// push the result to its bound) and with model complexity, approximated by
// thread-pool utilization when metrics is available.
func RegularizationStrength(overfittingRisk float64, metrics *models.SystemLoadMetrics) float64 {
	strength := 0.01 + clampF(overfittingRisk, 0, 1)*0.5
	if metrics != nil {
		strength += metrics.ThreadPoolUtilization * 0.1
	}
	return clampF(strength, 0.001, 1.0)
}

// OptimalTreeCount returns an ensemble size for a retraining pass. Defaults
// to 100 when metrics is nil; decreases as accuracy rises (a more accurate
// model needs less ensembling) and as system stability (1 - error rate)
// falls.
func OptimalTreeCount(accuracy float64, metrics *models.SystemLoadMetrics) int {
	if metrics == nil {
		return 100
	}
	base := 100.0 * (1.2 - clampF(accuracy, 0, 1))
	stability := 1 - clampF(metrics.ErrorRate, 0, 1)
	base *= 0.5 + 0.5*stability
	return clampInt(int(math.Round(base)), 10, 500)
}

// OptimalLeafCount returns a leaf-count budget for a tree-structured
// estimator. Defaults to 31 (a common power-of-two-minus-one default) when
// metrics is nil; grows with dataSize.
func OptimalLeafCount(dataSize int, metrics *models.SystemLoadMetrics) int {
	if metrics == nil {
		return 31
	}
	leaves := 31 + dataSize/500
	return clampInt(leaves, 31, 255)
}

// MinExamplesPerLeaf increases as accuracy drops (a weaker model needs more
// examples per leaf to avoid overfitting to noise), clamped to [1, 10].
func MinExamplesPerLeaf(accuracy float64) int {
	v := int(math.Round((1 - clampF(accuracy, 0, 1)) * 10))
	return clampInt(v, 1, 10)
}

// AdaptiveExplorationRate increases as the current strategy's observed
// effectiveness drops. Returns the safe default 0.1 for invalid
// (NaN or out-of-[0,1]) input; metrics is accepted for symmetry with the
// other helpers but does not currently modulate the result.
func AdaptiveExplorationRate(effectiveness float64, metrics *models.SystemLoadMetrics) float64 {
	if math.IsNaN(effectiveness) || effectiveness < 0 || effectiveness > 1 {
		return 0.1
	}
	rate := 0.5 * (1 - effectiveness)
	return clampF(rate, 0.01, 0.5)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
