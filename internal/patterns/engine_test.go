package patterns

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

func pred(requestType string, strategies []models.Strategy, improvement time.Duration, concurrent int, ts time.Time) *models.PredictionResult {
	return &models.PredictionResult{
		RequestType:         requestType,
		PredictedStrategies: strategies,
		ActualImprovement:   improvement,
		Timestamp:           ts,
		Metrics:             models.ExecutionMetrics{ConcurrentExecutions: concurrent},
	}
}

func TestClassify_ImpactTiers(t *testing.T) {
	assert.Equal(t, ImpactLow, Classify(10*time.Millisecond))
	assert.Equal(t, ImpactMedium, Classify(50*time.Millisecond))
	assert.Equal(t, ImpactMedium, Classify(100*time.Millisecond))
	assert.Equal(t, ImpactHigh, Classify(101*time.Millisecond))
}

func TestClassifyLoad_Buckets(t *testing.T) {
	assert.Equal(t, LoadLow, ClassifyLoad(50))
	assert.Equal(t, LoadMedium, ClassifyLoad(100))
	assert.Equal(t, LoadHigh, ClassifyLoad(101))
}

func TestEngine_Retrain_NilSliceIsInvalidArgument(t *testing.T) {
	e := New(0.3, 10, nil)
	err := e.Retrain(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestEngine_Retrain_BelowMinimumIsNoOp(t *testing.T) {
	e := New(0.3, 10, nil)
	preds := make([]*models.PredictionResult, 5)
	for i := range preds {
		preds[i] = pred("get_user", []models.Strategy{models.StrategyCaching}, 10*time.Millisecond, 1, time.Now())
	}
	err := e.Retrain(preds)
	require.NoError(t, err)
	_, ok := e.Weight("get_user", models.StrategyCaching)
	assert.False(t, ok)
	assert.Equal(t, 0, e.RetrainCount())
}

func TestEngine_Retrain_SkipsNilEntries(t *testing.T) {
	e := New(0.3, 3, nil)
	preds := []*models.PredictionResult{
		pred("get_user", []models.Strategy{models.StrategyCaching}, 60*time.Millisecond, 1, time.Now()),
		nil,
		pred("get_user", []models.Strategy{models.StrategyCaching}, 60*time.Millisecond, 1, time.Now()),
		pred("get_user", []models.Strategy{models.StrategyCaching}, 60*time.Millisecond, 1, time.Now()),
	}
	err := e.Retrain(preds)
	require.NoError(t, err)
	w, ok := e.Weight("get_user", models.StrategyCaching)
	require.True(t, ok)
	assert.Greater(t, w, 0.0)
}

func TestEngine_Retrain_BlendsWeightWithEMA(t *testing.T) {
	e := New(0.5, 2, nil)
	failing := []*models.PredictionResult{
		pred("list", []models.Strategy{models.StrategyBatching}, -5*time.Millisecond, 1, time.Now()),
		pred("list", []models.Strategy{models.StrategyBatching}, -5*time.Millisecond, 1, time.Now()),
	}
	require.NoError(t, e.Retrain(failing))
	w1, _ := e.Weight("list", models.StrategyBatching)
	assert.Equal(t, 0.0, w1) // all failures => success rate 0, blended from 0

	succeeding := []*models.PredictionResult{
		pred("list", []models.Strategy{models.StrategyBatching}, 20*time.Millisecond, 1, time.Now()),
		pred("list", []models.Strategy{models.StrategyBatching}, 20*time.Millisecond, 1, time.Now()),
	}
	require.NoError(t, e.Retrain(succeeding))
	w2, _ := e.Weight("list", models.StrategyBatching)
	assert.InDelta(t, 0.5, w2, 1e-9) // 0.5*1.0 + 0.5*0.0
}

func TestEngine_Retrain_TemporalBuckets(t *testing.T) {
	e := New(0.3, 2, nil)
	ts := time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC) // Monday, 14:00 UTC
	preds := []*models.PredictionResult{
		pred("a", []models.Strategy{models.StrategyCaching}, 10*time.Millisecond, 1, ts),
		pred("a", []models.Strategy{models.StrategyCaching}, -10*time.Millisecond, 1, ts),
	}
	require.NoError(t, e.Retrain(preds))

	rate, ok := e.HourSuccessRate(14)
	require.True(t, ok)
	assert.InDelta(t, 0.5, rate, 1e-9)

	dayRate, ok := e.WeekdaySuccessRate(time.Monday)
	require.True(t, ok)
	assert.InDelta(t, 0.5, dayRate, 1e-9)
}

func TestEngine_Retrain_LoadBuckets(t *testing.T) {
	e := New(0.3, 2, nil)
	preds := []*models.PredictionResult{
		pred("a", []models.Strategy{models.StrategyCaching}, 10*time.Millisecond, 200, time.Now()),
		pred("a", []models.Strategy{models.StrategyCaching}, 10*time.Millisecond, 150, time.Now()),
	}
	require.NoError(t, e.Retrain(preds))
	rate, ok := e.LoadSuccessRate(LoadHigh)
	require.True(t, ok)
	assert.Equal(t, 1.0, rate)

	_, ok = e.LoadSuccessRate(LoadLow)
	assert.False(t, ok)
}

func TestEngine_Retrain_MultipleStrategiesPerPredictionGroupSeparately(t *testing.T) {
	e := New(0.3, 2, nil)
	preds := []*models.PredictionResult{
		pred("a", []models.Strategy{models.StrategyCaching, models.StrategyBatching}, 60*time.Millisecond, 1, time.Now()),
		pred("a", []models.Strategy{models.StrategyCaching}, 60*time.Millisecond, 1, time.Now()),
	}
	require.NoError(t, e.Retrain(preds))

	groups := e.LastGroups()
	found := map[models.Strategy]bool{}
	for _, g := range groups {
		found[g.Strategy] = true
	}
	assert.True(t, found[models.StrategyCaching])
	assert.True(t, found[models.StrategyBatching])
}

func TestEngine_WeightsForType(t *testing.T) {
	e := New(0.3, 2, nil)
	preds := []*models.PredictionResult{
		pred("a", []models.Strategy{models.StrategyCaching}, 60*time.Millisecond, 1, time.Now()),
		pred("a", []models.Strategy{models.StrategyBatching}, 60*time.Millisecond, 1, time.Now()),
	}
	require.NoError(t, e.Retrain(preds))

	ws := e.WeightsForType("a")
	assert.Len(t, ws, 2)
	assert.Contains(t, ws, models.StrategyCaching)
	assert.Contains(t, ws, models.StrategyBatching)
	assert.Empty(t, e.WeightsForType("unknown"))
}

func TestEngine_RetrainCountAndLastRetrainTimeAdvance(t *testing.T) {
	e := New(0.3, 1, nil)
	assert.True(t, e.LastRetrainTime().IsZero())
	require.NoError(t, e.Retrain([]*models.PredictionResult{
		pred("a", []models.Strategy{models.StrategyCaching}, time.Millisecond, 1, time.Now()),
	}))
	assert.Equal(t, 1, e.RetrainCount())
	assert.False(t, e.LastRetrainTime().IsZero())
}
