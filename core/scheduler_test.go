package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"langaccessor/database"
	"langaccessor/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerCoalescesTriggersDuringPass(t *testing.T) {
	started := make(chan struct{}, 10)
	release := make(chan struct{})
	var passes, running, overlap int32

	s := NewScheduler(func(ctx context.Context) error {
		if atomic.AddInt32(&running, 1) > 1 {
			atomic.StoreInt32(&overlap, 1)
		}
		defer atomic.AddInt32(&running, -1)
		atomic.AddInt32(&passes, 1)
		started <- struct{}{}
		<-release
		return nil
	})
	reports := make(chan PassReport, 10)
	s.OnPass(func(r PassReport) { reports <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.True(t, s.Trigger("first"))
	<-started

	assert.True(t, s.Trigger("during pass"))
	assert.False(t, s.Trigger("coalesced 1"))
	assert.False(t, s.Trigger("coalesced 2"))

	release <- struct{}{}
	<-started
	release <- struct{}{}

	first := <-reports
	second := <-reports
	assert.Equal(t, "first", first.Reason)
	assert.Equal(t, "during pass", second.Reason)
	assert.NotEqual(t, first.ID, second.ID)

	select {
	case <-started:
		t.Fatal("a third pass ran")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&passes))
	assert.Equal(t, int32(0), atomic.LoadInt32(&overlap))

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSchedulerSurvivesFailedPass(t *testing.T) {
	var calls int32
	s := NewScheduler(func(ctx context.Context) error {
		if atomic.AddInt32(&calls, 1) == 1 {
			return errors.New("engine unavailable")
		}
		return nil
	})
	reports := make(chan PassReport, 2)
	s.OnPass(func(r PassReport) { reports <- r })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	s.Trigger("one")
	r := <-reports
	assert.EqualError(t, r.Err, "engine unavailable")

	s.Trigger("two")
	r = <-reports
	assert.NoError(t, r.Err)
}

func TestTriggerOnSettingsChange(t *testing.T) {
	ctx := context.Background()
	settings := database.NewSettings(database.NewMemoryStore())
	s := NewScheduler(func(ctx context.Context) error { return nil })
	unsubscribe := TriggerOnSettingsChange(settings, s)
	defer unsubscribe()

	require.NoError(t, settings.SaveRuleIDMap(ctx, models.RuleIDMap{"a.com": 1}))
	assert.True(t, s.Trigger("check"), "rule_id_map writes must not queue a pass")
	<-s.queue

	require.NoError(t, settings.SetEnabled(ctx, false))
	assert.False(t, s.Trigger("check"), "extension_enabled write should have queued a pass")
	<-s.queue

	_, err := settings.UpsertDomainSetting(ctx, "a.com", "en-US", time.Now())
	require.NoError(t, err)
	assert.False(t, s.Trigger("check"), "domain_settings write should have queued a pass")
}

func TestSchedulerRunsSynchronizer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := database.NewMemoryStore()
	settings := database.NewSettings(store)
	engine := NewHeaderRuleEngine(store, 0)
	s := NewScheduler(SyncPass(NewSynchronizer(settings, engine, StrategyReplace)))
	TriggerOnSettingsChange(settings, s)
	go s.Run(ctx)

	_, err := settings.UpsertDomainSetting(ctx, "example.com", "zh-TW", time.Now())
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := engine.Match("example.com", models.ResourceMainFrame)
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}
