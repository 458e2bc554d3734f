package optimizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics-labs/reqopt/internal/analysis"
	"github.com/kubilitics-labs/reqopt/internal/health"
	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/patterns"
	"github.com/kubilitics-labs/reqopt/internal/sysmetrics"
)

func newTestEngine(t *testing.T) (*Engine, *sysmetrics.Calculator) {
	t.Helper()
	store := analysis.New(0)
	patternsEngine := patterns.New(0, 2, nil)
	scorer := health.New(health.Weights{})
	calc := sysmetrics.NewCalculator(nil, 0, true)
	provider := sysmetrics.NewProvider(calc, store, sysmetrics.ProviderOptions{})

	e := New(Config{}, store, patternsEngine, scorer, provider, nil, nil)
	return e, calc
}

func seedExecutions(e *Engine, requestType string, n int, strategies []models.Strategy) {
	for i := 0; i < n; i++ {
		_ = e.LearnFromExecution(requestType, strategies, models.ExecutionMetrics{
			AverageExecutionTime: 20 * time.Millisecond,
			LastExecutionTime:    time.Now(),
		})
	}
}

func TestGetModelStatisticsBeforeAnyLearning(t *testing.T) {
	e, _ := newTestEngine(t)
	stats, err := e.GetModelStatistics()
	require.NoError(t, err)
	assert.Zero(t, stats.Accuracy)
	assert.Zero(t, stats.TotalPredictions)
}

func TestGetModelStatisticsAfterLearning(t *testing.T) {
	e, _ := newTestEngine(t)
	seedExecutions(e, "checkout", 5, []models.Strategy{models.StrategyCaching})

	stats, err := e.GetModelStatistics()
	require.NoError(t, err)
	assert.Equal(t, 5, stats.TotalPredictions)
}

func TestGetModelStatisticsAfterDispose(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Dispose())
	_, err := e.GetModelStatistics()
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestValidateModelFlagsLowAccuracy(t *testing.T) {
	e, _ := newTestEngine(t)
	result, err := e.ValidateModel()
	require.NoError(t, err)
	assert.False(t, result.IsHealthy)
	var found bool
	for _, iss := range result.Issues {
		if iss.Kind == models.IssueLowAccuracy {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGetSystemInsightsReportsCPUBottleneck(t *testing.T) {
	e, calc := newTestEngine(t)
	calc.SetTestMetrics(map[string]float64{"cpu_utilization": 0.97})

	insights, err := e.GetSystemInsights(context.Background(), time.Hour)
	require.NoError(t, err)

	require.NotEmpty(t, insights.Bottlenecks)
	var cpu *models.Bottleneck
	for i := range insights.Bottlenecks {
		if insights.Bottlenecks[i].Component == "CPU" {
			cpu = &insights.Bottlenecks[i]
		}
	}
	require.NotNil(t, cpu)
	assert.Equal(t, models.SeverityCritical, cpu.Severity)
	assert.Contains(t, cpu.Description, "High CPU utilization")
}

func TestGetSystemInsightsNoBottlenecksWhenHealthy(t *testing.T) {
	e, calc := newTestEngine(t)
	calc.SetTestMetrics(map[string]float64{
		"cpu_utilization":    0.1,
		"memory_utilization": 0.1,
	})

	insights, err := e.GetSystemInsights(context.Background(), time.Hour)
	require.NoError(t, err)
	assert.Empty(t, insights.Bottlenecks)
	assert.Equal(t, models.GradeA, insights.PerformanceGrade)
}

func TestGetSystemInsightsCachingOpportunity(t *testing.T) {
	store := analysis.New(0)
	patternsEngine := patterns.New(0, 2, nil)
	scorer := health.New(health.Weights{})
	calc := sysmetrics.NewCalculator(nil, 0, true)
	provider := sysmetrics.NewProvider(calc, store, sysmetrics.ProviderOptions{})
	e := New(Config{}, store, patternsEngine, scorer, provider, nil, nil)

	calc.SetTestMetrics(map[string]float64{"database_pool_utilization": 0.8})
	for i := 0; i < 10; i++ {
		store.Ingest(models.SingleExecution{
			RequestType: "catalog_lookup",
			Success:     true,
			Duration:    10 * time.Millisecond,
			Timestamp:   time.Now(),
		})
	}
	for i := 0; i < 4; i++ {
		store.RecordRepeat("catalog_lookup")
	}

	insights, err := e.GetSystemInsights(context.Background(), time.Hour)
	require.NoError(t, err)
	require.Len(t, insights.Opportunities, 1)
	assert.Equal(t, "Implement Response Caching", insights.Opportunities[0].Title)
	assert.Equal(t, models.PriorityHigh, insights.Opportunities[0].Priority)
}

func engineWithWeights(t *testing.T, maxRisk models.Risk, strategy models.Strategy) *Engine {
	t.Helper()
	store := analysis.New(0)
	patternsEngine := patterns.New(0.9, 2, nil)
	scorer := health.New(health.Weights{})
	calc := sysmetrics.NewCalculator(nil, 0, true)
	provider := sysmetrics.NewProvider(calc, store, sysmetrics.ProviderOptions{})
	e := New(Config{MaxAutomaticOptimizationRisk: maxRisk}, store, patternsEngine, scorer, provider, nil, nil)

	for i := 0; i < 5; i++ {
		store.Ingest(models.SingleExecution{
			RequestType: "report_export",
			Success:     true,
			Duration:    30 * time.Millisecond,
			Timestamp:   time.Now(),
		})
	}
	preds := []*models.PredictionResult{
		{RequestType: "report_export", PredictedStrategies: []models.Strategy{strategy}, ActualImprovement: 60 * time.Millisecond, Timestamp: time.Now()},
		{RequestType: "report_export", PredictedStrategies: []models.Strategy{strategy}, ActualImprovement: 70 * time.Millisecond, Timestamp: time.Now()},
	}
	require.NoError(t, patternsEngine.Retrain(preds))
	return e
}

func TestAnalyzeRequestGatesStrategiesAboveRiskLimit(t *testing.T) {
	e := engineWithWeights(t, models.RiskMedium, models.StrategyDatabaseOptimization)

	rec, err := e.AnalyzeRequest(context.Background(), "report_export")
	require.NoError(t, err)
	assert.Equal(t, models.StrategyNone, rec.Strategy)
	assert.Contains(t, rec.Reasoning, "exceeds automatic optimization limit")
}

func TestAnalyzeRequestAllowsStrategiesWithinRiskLimit(t *testing.T) {
	e := engineWithWeights(t, models.RiskVeryHigh, models.StrategyDatabaseOptimization)

	rec, err := e.AnalyzeRequest(context.Background(), "report_export")
	require.NoError(t, err)
	assert.Equal(t, models.StrategyDatabaseOptimization, rec.Strategy)
	assert.Equal(t, models.RiskHigh, rec.Risk)
}

func TestSetLearningModeFalseStopsNewPredictions(t *testing.T) {
	e, _ := newTestEngine(t)
	e.SetLearningMode(false)
	seedExecutions(e, "checkout", 5, []models.Strategy{models.StrategyCaching})

	_, err := e.AnalyzeRequest(context.Background(), "checkout")
	require.NoError(t, err)

	stats, err := e.GetModelStatistics()
	require.NoError(t, err)
	assert.Zero(t, stats.TotalPredictions)
}

func TestGetSystemInsightsAfterDispose(t *testing.T) {
	e, _ := newTestEngine(t)
	require.NoError(t, e.Dispose())
	_, err := e.GetSystemInsights(context.Background(), 0)
	assert.ErrorIs(t, err, ErrDisposed)
}

func TestIntrospectReflectsLifecycle(t *testing.T) {
	e, _ := newTestEngine(t)
	info := e.Introspect()
	assert.False(t, info.Disposed)
	assert.True(t, info.LearningEnabled)

	e.SetLearningMode(false)
	require.NoError(t, e.Dispose())

	info = e.Introspect()
	assert.True(t, info.Disposed)
	assert.False(t, info.LearningEnabled)
}

func TestOptimalEpochsDefaultsWithoutMetrics(t *testing.T) {
	assert.Equal(t, 100, OptimalEpochs(0, nil))
}

func TestOptimalEpochsGrowsWithDataSize(t *testing.T) {
	metrics := &models.SystemLoadMetrics{ThreadPoolUtilization: 0.1}
	small := OptimalEpochs(100, metrics)
	large := OptimalEpochs(10000, metrics)
	assert.Less(t, small, large)
}

func TestAdaptiveExplorationRateInvalidInput(t *testing.T) {
	assert.Equal(t, 0.1, AdaptiveExplorationRate(-1, nil))
	assert.Equal(t, 0.1, AdaptiveExplorationRate(1.5, nil))
}

func TestValidateModelPerformanceHealthyModel(t *testing.T) {
	stats := models.ModelStats{
		Accuracy:              0.9,
		F1Score:                0.85,
		TrainingDataPoints:     500,
		LastRetrainingTime:     time.Now(),
		AveragePredictionTime:  5 * time.Millisecond,
	}
	result := ValidateModelPerformance(stats)
	assert.True(t, result.IsHealthy)
	assert.Equal(t, 1.0, result.OverallScore)
	assert.Empty(t, result.Issues)
}

func TestValidateModelPerformanceStaleModel(t *testing.T) {
	stats := models.ModelStats{
		Accuracy:              0.9,
		F1Score:                0.85,
		TrainingDataPoints:     500,
		LastRetrainingTime:     time.Now().Add(-30 * 24 * time.Hour),
		AveragePredictionTime:  5 * time.Millisecond,
	}
	result := ValidateModelPerformance(stats)
	assert.True(t, result.IsHealthy)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, models.IssueStaleModel, result.Issues[0].Kind)
}
