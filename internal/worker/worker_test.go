package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWorkerRunsImmediatelyAndStops(t *testing.T) {
	var runs atomic.Int32
	w := New("test", 10*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	})

	stop := w.Run(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	stop()
	stop()

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, runs.Load())
}

func TestWorkerExitsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := New("ctx", time.Hour, func(context.Context) error { return nil })
	go w.Start(ctx)
	cancel()

	select {
	case <-w.done:
	case <-time.After(time.Second):
		t.Fatal("worker did not exit after cancel")
	}
}

func TestRunOnceReturnsJobError(t *testing.T) {
	boom := errors.New("boom")
	w := New("failing", time.Hour, func(context.Context) error { return boom })
	assert.ErrorIs(t, w.RunOnce(context.Background()), boom)
}

type fakeRentals struct {
	batches []int
	calls   int
}

func (f *fakeRentals) CompleteMatured(_ context.Context, limit int32) (int, error) {
	if f.calls >= len(f.batches) {
		return 0, nil
	}
	n := f.batches[f.calls]
	f.calls++
	return n, nil
}

func TestMaturityWorkerDrainsFullBatches(t *testing.T) {
	rentals := &fakeRentals{batches: []int{5, 5, 2}}
	w := NewMaturityWorker(rentals, time.Hour, 5)
	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, 3, rentals.calls)
}

type fakeSweep struct {
	escalateErr error
	expired     bool
	gauge       bool
	purgedAt    time.Time
}

func (f *fakeSweep) Escalate(context.Context, int32) (int, error) { return 1, f.escalateErr }
func (f *fakeSweep) RefreshQueueGauge(context.Context) { f.gauge = true }
func (f *fakeSweep) ExpireStale(context.Context, int32) (int, error) {
	f.expired = true
	return 2, nil
}
func (f *fakeSweep) Purge(_ context.Context, now time.Time) (int64, error) {
	f.purgedAt = now
	return 3, nil
}

func TestSweepWorkerContinuesAfterFailure(t *testing.T) {
	boom := errors.New("escalation failed")
	f := &fakeSweep{escalateErr: boom}
	w := NewSweepWorker(f, f, f, time.Hour, 10)

	err := w.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, f.gauge)
	assert.True(t, f.expired)
	assert.False(t, f.purgedAt.IsZero())
}
