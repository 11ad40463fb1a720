package pause

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestPauseResumeIdempotent(t *testing.T) {
	var pauses, resumes atomic.Int32
	c := NewController(Config{
		Logger:   testLogger(),
		OnPause:  func(string, time.Time) { pauses.Add(1) },
		OnResume: func(string) { resumes.Add(1) },
	})

	if !c.Pause("quota", time.Time{}) {
		t.Fatal("first Pause() should report the transition")
	}
	if c.Pause("quota again", time.Time{}) {
		t.Fatal("second Pause() should be a no-op")
	}
	if !c.IsPaused() {
		t.Fatal("expected paused state")
	}

	c.Resume(ManualResumeReason)
	c.Resume(ManualResumeReason)
	if c.IsPaused() {
		t.Fatal("expected running state")
	}

	if got := pauses.Load(); got != 1 {
		t.Fatalf("expected 1 pause callback, got %d", got)
	}
	if got := resumes.Load(); got != 1 {
		t.Fatalf("expected 1 resume callback, got %d", got)
	}
}

func TestWaitIfPausedOpenGate(t *testing.T) {
	c := NewController(Config{Logger: testLogger()})

	done := make(chan error, 1)
	go func() { done <- c.WaitIfPaused(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitIfPaused() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused() blocked on an open gate")
	}
}

func TestWaitIfPausedBlocksUntilResume(t *testing.T) {
	c := NewController(Config{Logger: testLogger()})
	c.Pause("quota", time.Time{})

	done := make(chan error, 1)
	go func() { done <- c.WaitIfPaused(context.Background()) }()

	select {
	case <-done:
		t.Fatal("WaitIfPaused() returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	c.Resume(ManualResumeReason)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitIfPaused() error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused() did not wake on resume")
	}
}

func TestWaitIfPausedAutoResume(t *testing.T) {
	var reason atomic.Value
	c := NewController(Config{
		Logger:   testLogger(),
		OnResume: func(r string) { reason.Store(r) },
	})
	c.Pause("quota", time.Now().Add(80*time.Millisecond))

	start := time.Now()
	if err := c.WaitIfPaused(context.Background()); err != nil {
		t.Fatalf("WaitIfPaused() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("resumed too early: %v", elapsed)
	}
	if c.IsPaused() {
		t.Fatal("expected gate reopened by the waiter")
	}
	if got, _ := reason.Load().(string); got != AutoResumeReason {
		t.Fatalf("expected %q resume reason, got %q", AutoResumeReason, got)
	}
}

func TestWaitIfPausedPastScheduledResume(t *testing.T) {
	c := NewController(Config{Logger: testLogger()})
	c.Pause("quota", time.Now().Add(-time.Second))

	if err := c.WaitIfPaused(context.Background()); err != nil {
		t.Fatalf("WaitIfPaused() error = %v", err)
	}
	if c.IsPaused() {
		t.Fatal("expected immediate auto-resume for a past schedule")
	}
}

func TestWaitIfPausedContextCancelled(t *testing.T) {
	c := NewController(Config{Logger: testLogger()})
	c.Pause("quota", time.Time{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.WaitIfPaused(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused() ignored cancellation")
	}
	if !c.IsPaused() {
		t.Fatal("cancellation must not reopen the gate")
	}
}

func TestResumeWakesAllWaiters(t *testing.T) {
	c := NewController(Config{Logger: testLogger()})
	c.Pause("quota", time.Time{})

	const waiters = 8
	var wg sync.WaitGroup
	errs := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.WaitIfPaused(context.Background())
		}()
	}

	time.Sleep(20 * time.Millisecond)
	c.Resume(ManualResumeReason)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all waiters woke on resume")
	}
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("waiter error = %v", err)
		}
	}
}
