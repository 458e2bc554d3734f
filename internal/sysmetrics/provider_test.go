package sysmetrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kubilitics-labs/reqopt/internal/models"
)

type stubSource struct{}

func (stubSource) Snapshots() []models.RequestAnalysisSnapshot { return nil }
func (stubSource) DatabasePoolUtilization() float64            { return 0.1 }
func (stubSource) ThreadPoolUtilization() float64               { return 0.2 }

func TestProvider_NoCachingAlwaysFresh(t *testing.T) {
	calc := NewCalculator(nil, 10, false)
	p := NewProvider(calc, stubSource{}, ProviderOptions{EnableCaching: false})

	m1 := p.GetCurrentLoad(context.Background())
	time.Sleep(2 * time.Millisecond)
	m2 := p.GetCurrentLoad(context.Background())
	assert.True(t, m2.Timestamp.After(m1.Timestamp) || m2.Timestamp.Equal(m1.Timestamp))
}

func TestProvider_CachingReturnsSameSnapshotWithinTTL(t *testing.T) {
	calc := NewCalculator(nil, 10, false)
	p := NewProvider(calc, stubSource{}, ProviderOptions{EnableCaching: true, CacheTTL: time.Minute})

	m1 := p.GetCurrentLoad(context.Background())
	m2 := p.GetCurrentLoad(context.Background())
	assert.Equal(t, m1.Timestamp, m2.Timestamp)
}

func TestProvider_StopIsIdempotent(t *testing.T) {
	calc := NewCalculator(nil, 10, false)
	p := NewProvider(calc, stubSource{}, ProviderOptions{EnableCaching: true, CacheRefreshInterval: time.Hour})
	p.Start(context.Background())
	p.Stop()
	assert.NotPanics(t, func() { p.Stop() })
}
