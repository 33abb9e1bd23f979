package scheduler

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kmoray/trestle/internal/config"
	"github.com/kmoray/trestle/internal/events"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSchedulerRunsTaskImmediatelyAndOnInterval(t *testing.T) {
	var runs atomic.Int64

	s := New(quietLogger())
	s.Add(Task{
		Name:     "tick-counter",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	s.Start(context.Background())
	time.Sleep(45 * time.Millisecond)
	s.Stop()

	got := runs.Load()
	assert.GreaterOrEqual(t, got, int64(2), "expected immediate run plus at least one tick, got %d", got)
}

func TestSchedulerTaskErrorKeepsSchedule(t *testing.T) {
	var runs atomic.Int64

	s := New(quietLogger())
	s.Add(Task{
		Name:     "always-fails",
		Interval: 10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return assert.AnError
		},
	})

	s.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	s.Stop()

	assert.GreaterOrEqual(t, runs.Load(), int64(2))
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	var runs atomic.Int64

	ctx, cancel := context.WithCancel(context.Background())
	s := New(quietLogger())
	s.Add(Task{
		Name:     "cancel-me",
		Interval: 5 * time.Millisecond,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	s.Start(ctx)
	time.Sleep(15 * time.Millisecond)
	cancel()
	time.Sleep(15 * time.Millisecond)

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "task kept running after cancel")
}

type fakeAuditStore struct {
	count          int
	countErr       error
	deleted        int64
	deletedIgnored int64

	gotCutoff        time.Time
	gotIgnoredCutoff time.Time
}

func (f *fakeAuditStore) CountOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	return f.count, f.countErr
}

func (f *fakeAuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.gotCutoff = cutoff
	return f.deleted, nil
}

func (f *fakeAuditStore) DeleteIgnoredOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	f.gotIgnoredCutoff = cutoff
	return f.deletedIgnored, nil
}

type fakeStateStore struct {
	gotName    string
	gotUpdates json.RawMessage
}

func (f *fakeStateStore) ShallowMerge(ctx context.Context, name string, updates json.RawMessage) (json.RawMessage, error) {
	f.gotName = name
	f.gotUpdates = updates
	return updates, nil
}

func withFrozenClock(t *testing.T, at time.Time) {
	t.Helper()
	orig := timeNow
	timeNow = func() time.Time { return at }
	t.Cleanup(func() { timeNow = orig })
}

func TestCleanupTaskRetentionCutoffs(t *testing.T) {
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	withFrozenClock(t, now)

	store := &fakeAuditStore{count: 12, deleted: 12, deletedIgnored: 3}
	states := &fakeStateStore{}
	hub := events.NewHub(8)

	task := CleanupTask(config.CleanupConfig{
		RetentionDays:        90,
		IgnoredRetentionDays: 7,
		Interval:             24 * time.Hour,
	}, store, states, hub, quietLogger())

	require.Equal(t, "cleanup", task.Name)
	require.Equal(t, 24*time.Hour, task.Interval)
	require.NoError(t, task.Run(context.Background()))

	assert.Equal(t, now.AddDate(0, 0, -90), store.gotCutoff)
	assert.Equal(t, now.AddDate(0, 0, -7), store.gotIgnoredCutoff)

	assert.Equal(t, "cleanup", states.gotName)
	var watermark map[string]any
	require.NoError(t, json.Unmarshal(states.gotUpdates, &watermark))
	assert.Equal(t, now.Format(time.RFC3339Nano), watermark["last_run"])
	assert.Equal(t, float64(12), watermark["deleted"])
	assert.Equal(t, float64(3), watermark["deleted_ignored"])

	published := hub.SnapshotSince(0)
	require.Len(t, published, 1)
	assert.Equal(t, events.TypeCleanupRun, published[0].Type)
}

func TestCleanupTaskIgnoredRetentionIsCapped(t *testing.T) {
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	withFrozenClock(t, now)

	store := &fakeAuditStore{}
	task := CleanupTask(config.CleanupConfig{
		RetentionDays:        90,
		IgnoredRetentionDays: 30,
	}, store, &fakeStateStore{}, nil, quietLogger())

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, now.AddDate(0, 0, -7), store.gotIgnoredCutoff)
}

func TestCleanupTaskShortRetentionBoundsIgnored(t *testing.T) {
	now := time.Date(2025, 6, 1, 3, 0, 0, 0, time.UTC)
	withFrozenClock(t, now)

	store := &fakeAuditStore{}
	task := CleanupTask(config.CleanupConfig{
		RetentionDays:        3,
		IgnoredRetentionDays: 7,
	}, store, &fakeStateStore{}, nil, quietLogger())

	require.NoError(t, task.Run(context.Background()))
	assert.Equal(t, now.AddDate(0, 0, -3), store.gotIgnoredCutoff)
}

func TestCleanupTaskCountErrorStopsPass(t *testing.T) {
	store := &fakeAuditStore{countErr: assert.AnError}
	task := CleanupTask(config.CleanupConfig{RetentionDays: 90}, store, &fakeStateStore{}, nil, quietLogger())

	err := task.Run(context.Background())
	assert.ErrorContains(t, err, "count expired events")
	assert.True(t, store.gotCutoff.IsZero(), "no delete should run after a count failure")
}
