package behaviors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubilitics-labs/reqopt/internal/models"
	"github.com/kubilitics-labs/reqopt/internal/ports"
)

type fakeRecCache struct {
	getCalls int
	setCalls int

	getResult models.OptimizationRecommendation
	getHit    bool
	getErr    error
}

func (c *fakeRecCache) Get(_ context.Context, _ string) (models.OptimizationRecommendation, bool, error) {
	c.getCalls++
	return c.getResult, c.getHit, c.getErr
}

func (c *fakeRecCache) Set(_ context.Context, _ string, _ models.OptimizationRecommendation, _ time.Duration) error {
	c.setCalls++
	return nil
}

type fakeEngine struct {
	shouldCache models.CachingRecommendation
	analyzeRec  models.OptimizationRecommendation
}

func (e *fakeEngine) AnalyzeRequest(_ context.Context, _ string) (models.OptimizationRecommendation, error) {
	return e.analyzeRec, nil
}

func (e *fakeEngine) ShouldCache(_ string, _ []float64) (models.CachingRecommendation, error) {
	return e.shouldCache, nil
}

func (e *fakeEngine) LearnFromExecution(_ string, _ []models.Strategy, _ models.ExecutionMetrics) error {
	return nil
}

func newTestCachingBehavior(cache ports.RecommendationCache, engine RecommendationEngine, minExecTime time.Duration) *CachingBehavior {
	return NewCachingBehavior(CachingConfig{
		EnableCaching:              true,
		MinExecutionTimeForCaching: minExecTime,
		MaxCachedResponseSize:      1 << 20,
	}, cache, engine, nil, nil)
}

// Scenario 1: cold cache, fast handler under the threshold — no cache-set.
func TestCachingBehavior_ColdCacheFastHandler_NoSet(t *testing.T) {
	cache := &fakeRecCache{getHit: false}
	engine := &fakeEngine{
		shouldCache: models.CachingRecommendation{ShouldCache: true, TTL: time.Minute},
		analyzeRec:  models.OptimizationRecommendation{Strategy: models.StrategyCaching},
	}
	b := newTestCachingBehavior(cache, engine, 100*time.Millisecond)

	calls := 0
	next := func(ctx context.Context) (any, error) {
		calls++
		return map[string]string{"result": "ok"}, nil
	}

	resp, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, next)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"result": "ok"}, resp)
	assert.Equal(t, 1, cache.getCalls)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, cache.setCalls)
}

// Scenario 2: cold cache, slow handler over the threshold — exactly one
// cache-set.
func TestCachingBehavior_ColdCacheSlowHandler_SetsOnce(t *testing.T) {
	cache := &fakeRecCache{getHit: false}
	engine := &fakeEngine{
		shouldCache: models.CachingRecommendation{ShouldCache: true, TTL: time.Minute},
		analyzeRec:  models.OptimizationRecommendation{Strategy: models.StrategyCaching},
	}
	b := newTestCachingBehavior(cache, engine, 10*time.Millisecond)

	calls := 0
	next := func(ctx context.Context) (any, error) {
		calls++
		time.Sleep(20 * time.Millisecond)
		return map[string]string{"result": "ok"}, nil
	}

	resp, err := b.Handle(context.Background(), ports.Request{Type: "slow_widget"}, next)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"result": "ok"}, resp)
	assert.Equal(t, 1, cache.getCalls)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, cache.setCalls)
}

// Scenario 3: cached recommendation returned — handler still invoked and its
// own response is returned unchanged.
func TestCachingBehavior_CacheHit_HandlerStillInvoked(t *testing.T) {
	cached := models.OptimizationRecommendation{Strategy: models.StrategyCaching, Confidence: 0.95}
	cache := &fakeRecCache{getHit: true, getResult: cached}
	engine := &fakeEngine{}
	b := newTestCachingBehavior(cache, engine, 0)

	calls := 0
	next := func(ctx context.Context) (any, error) {
		calls++
		return map[string]string{"result": "ok"}, nil
	}

	resp, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, next)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"result": "ok"}, resp)
	assert.Equal(t, 1, cache.getCalls)
	assert.Equal(t, 1, calls)
}

// Scenario 4: cache backend throws on Get — exactly one handler invocation,
// no error observed by the caller.
func TestCachingBehavior_CacheGetErrors_FallsThroughToHandler(t *testing.T) {
	cache := &fakeRecCache{getErr: errors.New("cache backend unavailable")}
	engine := &fakeEngine{}
	b := newTestCachingBehavior(cache, engine, 0)

	calls := 0
	next := func(ctx context.Context) (any, error) {
		calls++
		return map[string]string{"result": "ok"}, nil
	}

	resp, err := b.Handle(context.Background(), ports.Request{Type: "get_widget"}, next)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"result": "ok"}, resp)
	assert.Equal(t, 1, calls)
}

// Scenario 5: cancelled request — caching side effects are skipped, and the
// handler's own result (here a response that ignores the cancelled context)
// is returned unchanged.
func TestCachingBehavior_CancelledRequest_NoCacheSet(t *testing.T) {
	cache := &fakeRecCache{getHit: false}
	engine := &fakeEngine{
		shouldCache: models.CachingRecommendation{ShouldCache: true, TTL: time.Minute},
	}
	b := newTestCachingBehavior(cache, engine, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	next := func(ctx context.Context) (any, error) {
		return map[string]string{"result": "ok"}, nil
	}

	resp, err := b.Handle(ctx, ports.Request{Type: "get_widget"}, next)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"result": "ok"}, resp)
	assert.Equal(t, 0, cache.setCalls)
}

func TestCachingBehavior_DisabledGlobally_BypassesCacheEntirely(t *testing.T) {
	cache := &fakeRecCache{}
	b := NewCachingBehavior(CachingConfig{EnableCaching: false}, cache, &fakeEngine{}, nil, nil)

	resp, err := b.Handle(context.Background(), ports.Request{Type: "x"}, func(ctx context.Context) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 0, cache.getCalls)
}

func TestCachingBehavior_HandlerError_PropagatesUnchanged(t *testing.T) {
	cache := &fakeRecCache{}
	b := newTestCachingBehavior(cache, &fakeEngine{}, 0)

	handlerErr := errors.New("downstream failed")
	_, err := b.Handle(context.Background(), ports.Request{Type: "x"}, func(ctx context.Context) (any, error) {
		return nil, handlerErr
	})
	assert.ErrorIs(t, err, handlerErr)
	assert.Equal(t, 0, cache.setCalls)
}
