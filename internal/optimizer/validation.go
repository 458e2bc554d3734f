package optimizer

import (
	"fmt"
	"time"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

// Deduction weights for ValidateModelPerformance's overall_score, one per
// IssueKind. An Error-severity issue (LowAccuracy) costs the most; the rest
// are Warning-severity and cost proportionally less.
const (
	deductLowAccuracy            = 0.40
	deductInconsistentPredictions = 0.20
	deductInsufficientData       = 0.10
	deductStaleModel             = 0.15
	deductSlowPredictions        = 0.15
)

const (
	staleModelAfter       = 7 * 24 * time.Hour
	slowPredictionBudget  = 200 * time.Millisecond
	minTrainingDataPoints = 100
	minAcceptableAccuracy = 0.5
	minAcceptableF1       = 0.6
)

// ValidateModelPerformance turns a ModelStats snapshot into a health
// verdict plus the specific issues that produced it. IsHealthy is true iff
// no issue carries Error severity.
func ValidateModelPerformance(stats models.ModelStats) models.ValidationResult {
	var issues []models.ValidationIssue
	deduction := 0.0

	if stats.Accuracy < minAcceptableAccuracy {
		issues = append(issues, models.ValidationIssue{
			Kind:     models.IssueLowAccuracy,
			Severity: models.IssueSeverityError,
			Description: fmt.Sprintf(
				"model accuracy %.2f is below the minimum acceptable %.2f", stats.Accuracy, minAcceptableAccuracy),
		})
		deduction += deductLowAccuracy
	}

	if stats.F1Score < minAcceptableF1 {
		issues = append(issues, models.ValidationIssue{
			Kind:     models.IssueInconsistentPredictions,
			Severity: models.IssueSeverityWarning,
			Description: fmt.Sprintf(
				"F1 score %.2f is below the minimum acceptable %.2f", stats.F1Score, minAcceptableF1),
		})
		deduction += deductInconsistentPredictions
	}

	if stats.TrainingDataPoints < minTrainingDataPoints {
		issues = append(issues, models.ValidationIssue{
			Kind:     models.IssueInsufficientData,
			Severity: models.IssueSeverityWarning,
			Description: fmt.Sprintf(
				"only %d training data points observed, below the minimum of %d", stats.TrainingDataPoints, minTrainingDataPoints),
		})
		deduction += deductInsufficientData
	}

	if !stats.LastRetrainingTime.IsZero() {
		age := time.Since(stats.LastRetrainingTime)
		if age > staleModelAfter {
			days := int(age.Hours() / 24)
			issues = append(issues, models.ValidationIssue{
				Kind:        models.IssueStaleModel,
				Severity:    models.IssueSeverityWarning,
				Description: fmt.Sprintf("model has not retrained in %d days", days),
			})
			deduction += deductStaleModel
		}
	}

	if stats.AveragePredictionTime > slowPredictionBudget {
		issues = append(issues, models.ValidationIssue{
			Kind:     models.IssueSlowPredictions,
			Severity: models.IssueSeverityWarning,
			Description: fmt.Sprintf(
				"average prediction time %s exceeds the %s budget", stats.AveragePredictionTime, slowPredictionBudget),
		})
		deduction += deductSlowPredictions
	}

	healthy := true
	for _, iss := range issues {
		if iss.Severity == models.IssueSeverityError {
			healthy = false
			break
		}
	}

	score := 1.0 - deduction
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return models.ValidationResult{
		IsHealthy:    healthy,
		OverallScore: score,
		Issues:       issues,
	}
}

// ValidateModel computes the engine's current ModelStatistics and validates
// them in one call.
func (e *Engine) ValidateModel() (models.ValidationResult, error) {
	stats, err := e.GetModelStatistics()
	if err != nil {
		return models.ValidationResult{}, err
	}
	return ValidateModelPerformance(stats), nil
}
