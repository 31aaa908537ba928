package workers

import (
	"context"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// panickyWorker crashes a few times then finishes cleanly.
type panickyWorker struct {
	runs     atomic.Int32
	panicRun int32
	done     chan struct{}
}

func (w *panickyWorker) Run(context.Context) error {
	run := w.runs.Add(1)
	if run <= w.panicRun {
		panic("boom")
	}
	close(w.done)
	return nil
}

// blockingWorker runs until its context is canceled.
type blockingWorker struct {
	started chan struct{}
}

func (w *blockingWorker) Run(ctx context.Context) error {
	close(w.started)
	<-ctx.Done()
	return nil
}

func TestSupervisor_Restarts_Panicked_Worker(t *testing.T) {
	req := require.New(t)

	// Given a worker that panics twice before succeeding
	worker := &panickyWorker{panicRun: 2, done: make(chan struct{})}
	supervisor := NewSupervisor(slog.Default(), 5*time.Millisecond)
	supervisor.Add(worker)

	// When the supervisor runs it
	finished := make(chan struct{})
	go func() {
		supervisor.Run(context.Background())
		close(finished)
	}()

	// Then the worker is restarted until it completes
	select {
	case <-worker.done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never completed")
	}
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor never returned")
	}
	req.EqualValues(3, worker.runs.Load())
}

func TestSupervisor_Stop_Cancels_Blocked_Workers(t *testing.T) {
	worker := &blockingWorker{started: make(chan struct{})}
	supervisor := NewSupervisor(slog.Default(), time.Minute)
	supervisor.Add(worker)

	finished := make(chan struct{})
	go func() {
		supervisor.Run(context.Background())
		close(finished)
	}()

	select {
	case <-worker.started:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never started")
	}

	// When the supervisor is stopped
	supervisor.Stop()

	// Then Run unblocks
	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not shut down")
	}
}
