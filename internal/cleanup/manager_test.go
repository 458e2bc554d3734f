package cleanup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	cutoff  time.Time
	removed int
}

func (f *fakeStore) Prune(cutoff time.Time) int {
	f.cutoff = cutoff
	return f.removed
}

type fakeTrimmer struct {
	max     int
	dropped int
}

func (f *fakeTrimmer) TrimPredictions(max int) int {
	f.max = max
	return f.dropped
}

func TestManager_RunOnce_PrunesAndTrims(t *testing.T) {
	store := &fakeStore{removed: 3}
	trimmer := &fakeTrimmer{dropped: 7}
	m := New(Config{RetentionWindow: time.Hour, MaxPredictions: 100}, store, trimmer, nil)

	m.RunOnce()

	assert.Equal(t, 100, trimmer.max)
	assert.WithinDuration(t, time.Now().Add(-time.Hour), store.cutoff, time.Second)
}

func TestManager_DefaultsApplied(t *testing.T) {
	m := New(Config{}, nil, nil, nil)
	assert.Equal(t, 5*time.Minute, m.cfg.Interval)
	assert.Equal(t, 24*time.Hour, m.cfg.RetentionWindow)
	assert.Equal(t, 5000, m.cfg.MaxPredictions)
}

func TestManager_RunOnce_NilCollaboratorsSafe(t *testing.T) {
	m := New(Config{}, nil, nil, nil)
	assert.NotPanics(t, func() { m.RunOnce() })
}

func TestManager_StartStop_Idempotent(t *testing.T) {
	m := New(Config{Interval: 10 * time.Millisecond}, &fakeStore{}, &fakeTrimmer{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)
	m.Stop()
	assert.NotPanics(t, func() { m.Stop() })
}
