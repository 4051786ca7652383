package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestIntervalSchedulerRunsImmediatelyAndRepeats(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(5 * time.Millisecond)
	var runs atomic.Int32
	if err := s.Start(context.Background(), func(context.Context) { runs.Add(1) }); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for runs.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if runs.Load() < 3 {
		t.Fatalf("expected repeated runs, got %d", runs.Load())
	}
}

func TestIntervalSchedulerStopWaitsForRunningJob(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	started := make(chan struct{})
	var finished atomic.Bool
	job := func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		time.Sleep(10 * time.Millisecond)
		finished.Store(true)
	}
	if err := s.Start(context.Background(), job); err != nil {
		t.Fatalf("start: %v", err)
	}
	<-started

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !finished.Load() {
		t.Fatalf("stop returned before the job unwound")
	}
}

func TestIntervalSchedulerDoubleStart(t *testing.T) {
	t.Parallel()

	s := NewIntervalScheduler(time.Hour)
	job := func(context.Context) {}
	if err := s.Start(context.Background(), job); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() { _ = s.Stop(context.Background()) }()

	if err := s.Start(context.Background(), job); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestIntervalSchedulerStopWithoutStart(t *testing.T) {
	t.Parallel()

	if err := NewIntervalScheduler(time.Second).Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
