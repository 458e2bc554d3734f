package behaviors

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/ports"
)

type learnCall struct {
	requestType string
	strategies  []models.Strategy
	metrics     models.ExecutionMetrics
}

type learningFakeEngine struct {
	analyzeRec models.OptimizationRecommendation
	analyzeErr error
	learnErr   error
	learnCalls []learnCall
}

func (e *learningFakeEngine) AnalyzeRequest(_ context.Context, _ string) (models.OptimizationRecommendation, error) {
	if e.analyzeErr != nil {
		return models.OptimizationRecommendation{}, e.analyzeErr
	}
	return e.analyzeRec, nil
}

func (e *learningFakeEngine) ShouldCache(_ string, _ []float64) (models.CachingRecommendation, error) {
	return models.CachingRecommendation{}, nil
}

func (e *learningFakeEngine) LearnFromExecution(requestType string, strategies []models.Strategy, m models.ExecutionMetrics) error {
	e.learnCalls = append(e.learnCalls, learnCall{requestType: requestType, strategies: strategies, metrics: m})
	return e.learnErr
}

func TestAIOptimizationBehavior_DisabledGlobally_SkipsAnalysisAndLearning(t *testing.T) {
	engine := &learningFakeEngine{}
	b := NewAIOptimizationBehavior(AIOptimizationConfig{Enabled: false}, engine, nil)

	resp, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Empty(t, engine.learnCalls)
}

func TestAIOptimizationBehavior_SuccessfulCall_RecordsLearning(t *testing.T) {
	engine := &learningFakeEngine{analyzeRec: models.OptimizationRecommendation{Strategy: models.StrategyBatching, Confidence: 0.8}}
	b := NewAIOptimizationBehavior(AIOptimizationConfig{Enabled: true}, engine, nil)

	resp, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	require.Len(t, engine.learnCalls, 1)
	assert.Equal(t, "get_widget", engine.learnCalls[0].requestType)
	assert.Equal(t, int64(1), engine.learnCalls[0].metrics.SuccessfulExecutions)
	assert.Equal(t, int64(0), engine.learnCalls[0].metrics.FailedExecutions)
}

func TestAIOptimizationBehavior_HandlerError_StillRecordsLearningAsFailure(t *testing.T) {
	engine := &learningFakeEngine{}
	b := NewAIOptimizationBehavior(AIOptimizationConfig{Enabled: true}, engine, nil)

	handlerErr := errors.New("downstream failed")
	_, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, func(ctx context.Context) (any, error) {
		return nil, handlerErr
	})
	assert.ErrorIs(t, err, handlerErr)
	require.Len(t, engine.learnCalls, 1)
	assert.Equal(t, int64(1), engine.learnCalls[0].metrics.FailedExecutions)
}

func TestAIOptimizationBehavior_CancelledRequest_SkipsLearning(t *testing.T) {
	engine := &learningFakeEngine{}
	b := NewAIOptimizationBehavior(AIOptimizationConfig{Enabled: true}, engine, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Handle(ctx, ports.Request{Type: "get_widget"}, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Empty(t, engine.learnCalls)
}

func TestAIOptimizationBehavior_AnalyzeErrors_StillCallsNextAndLearns(t *testing.T) {
	engine := &learningFakeEngine{analyzeErr: errors.New("analyze failed")}
	b := NewAIOptimizationBehavior(AIOptimizationConfig{Enabled: true}, engine, nil)

	calls := 0
	resp, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 1, calls)
	require.Len(t, engine.learnCalls, 1)
}

func TestAIOptimizationBehavior_LearnErrors_DoesNotPropagate(t *testing.T) {
	engine := &learningFakeEngine{learnErr: errors.New("learn failed")}
	b := NewAIOptimizationBehavior(AIOptimizationConfig{Enabled: true}, engine, nil)

	resp, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestAIOptimizationBehavior_NilEngine_BypassesEntirely(t *testing.T) {
	b := NewAIOptimizationBehavior(AIOptimizationConfig{Enabled: true}, nil, nil)

	resp, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
}
