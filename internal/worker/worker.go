// Package worker runs the periodic background jobs: rental maturity, the
// withdrawal/payment sweep and ledger reconciliation.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liquifund/liquidity/internal/observability"
	"go.uber.org/zap"
)

// JobFunc performs one pass of a background job.
type JobFunc func(ctx context.Context) error

// Worker runs a job on a fixed interval until stopped or its context ends.
type Worker struct {
	name     string
	job      JobFunc
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	started  atomic.Bool
	done     chan struct{}
}

func New(name string, interval time.Duration, job JobFunc) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Worker{
		name:     name,
		job:      job,
		interval: interval,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Worker) Name() string {
	return w.name
}

// Start blocks and runs the job once immediately, then at every tick.
func (w *Worker) Start(ctx context.Context) {
	if !w.started.CompareAndSwap(false, true) {
		return
	}
	defer close(w.done)
	logger := zap.L().With(zap.String("worker", w.name))
	logger.Info("worker starting", zap.Duration("interval", w.interval))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Info("worker context canceled")
			return
		case <-w.stopCh:
			logger.Info("worker stop signal received")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// Stop ends the loop and waits for an in-flight pass to finish.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	if w.started.Load() {
		<-w.done
	}
}

// Run starts the worker in a goroutine and returns a stop function.
func (w *Worker) Run(ctx context.Context) func() {
	go w.Start(ctx)
	return w.Stop
}

// RunOnce executes a single pass and records its outcome.
func (w *Worker) RunOnce(ctx context.Context) error {
	started := time.Now()
	if err := w.job(ctx); err != nil {
		observability.IncrementWorkerRun(w.name, "failed")
		zap.L().Error("worker run failed", zap.String("worker", w.name), zap.Error(err))
		return err
	}
	observability.IncrementWorkerRun(w.name, "success")
	zap.L().Debug("worker run finished", zap.String("worker", w.name), zap.Duration("took", time.Since(started)))
	return nil
}
