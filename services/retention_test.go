package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	mu      sync.Mutex
	calls   []time.Time
	deleted int64
	err     error
	panic   bool
}

func (p *fakePurger) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panic {
		panic("db exploded")
	}
	p.calls = append(p.calls, now)
	return p.deleted, p.err
}

func (p *fakePurger) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type fakeLocker struct {
	held     bool
	unlocked []string
}

func (l *fakeLocker) TryLock(_ context.Context, _ string, _ time.Duration) (string, bool, error) {
	if l.held {
		return "", false, nil
	}
	l.held = true
	return "token-1", true, nil
}

func (l *fakeLocker) Unlock(_ context.Context, _ string, token string) error {
	l.held = false
	l.unlocked = append(l.unlocked, token)
	return nil
}

func TestComputeExpiry(t *testing.T) {
	created := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC), ComputeExpiry(created, 30*day))
}

func TestNextRun(t *testing.T) {
	now := time.Date(2026, 5, 1, 10, 30, 0, 0, time.UTC)

	interval := NewCleanupJob(&fakePurger{}, 15*time.Minute, nil)
	assert.Equal(t, now.Add(15*time.Minute), interval.nextRun(now))

	hour := 2
	daily := NewCleanupJob(&fakePurger{}, time.Hour, &hour)
	assert.Equal(t, time.Date(2026, 5, 2, 2, 0, 0, 0, time.UTC), daily.nextRun(now))

	late := 11
	sameDay := NewCleanupJob(&fakePurger{}, time.Hour, &late)
	assert.Equal(t, time.Date(2026, 5, 1, 11, 0, 0, 0, time.UTC), sameDay.nextRun(now))

	exact := 10
	atHour := NewCleanupJob(&fakePurger{}, time.Hour, &exact)
	assert.Equal(t, time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC), atHour.nextRun(time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestSweepUsesLock(t *testing.T) {
	purger := &fakePurger{deleted: 4}
	locker := &fakeLocker{}
	now := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	job := NewCleanupJob(purger, time.Hour, nil).WithLocker(locker, time.Minute).WithClock(func() time.Time { return now })

	deleted, err := job.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), deleted)
	assert.Equal(t, []time.Time{now}, purger.calls)
	assert.Equal(t, []string{"token-1"}, locker.unlocked)

	// лок занят другим узлом
	locker.held = true
	deleted, err = job.Sweep(context.Background())
	assert.True(t, errors.Is(err, ErrCleanupSkipped), "got %v", err)
	assert.Zero(t, deleted)
	assert.Equal(t, 1, purger.Calls())
}

func TestRunOnceSwallowsFailures(t *testing.T) {
	failing := NewCleanupJob(&fakePurger{err: errors.New("connection refused")}, time.Hour, nil)
	assert.NotPanics(t, func() { failing.RunOnce(context.Background()) })

	panicking := NewCleanupJob(&fakePurger{panic: true}, time.Hour, nil)
	assert.NotPanics(t, func() { panicking.RunOnce(context.Background()) })
}

func TestRunOnceRecordsSingleOutcome(t *testing.T) {
	ok := chatCleanupRuns.WithLabelValues("ok")
	skipped := chatCleanupRuns.WithLabelValues("skipped")
	failed := chatCleanupRuns.WithLabelValues("error")

	locker := &fakeLocker{held: true}
	job := NewCleanupJob(&fakePurger{}, time.Hour, nil).WithLocker(locker, time.Minute)

	okBefore, skippedBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(skipped), testutil.ToFloat64(failed)
	job.RunOnce(context.Background())
	assert.Equal(t, okBefore, testutil.ToFloat64(ok))
	assert.Equal(t, skippedBefore+1, testutil.ToFloat64(skipped))
	assert.Equal(t, failedBefore, testutil.ToFloat64(failed))

	locker.held = false
	job.RunOnce(context.Background())
	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, skippedBefore+1, testutil.ToFloat64(skipped))
}

func TestStartRunsOnInterval(t *testing.T) {
	purger := &fakePurger{}
	job := NewCleanupJob(purger, 10*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		job.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool { return purger.Calls() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup job did not stop")
	}
}
