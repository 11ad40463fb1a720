// Package pause implements the gate workers pass through between items.
// Pausing closes the gate; resuming reopens it and wakes every waiter at
// once. A pause may carry a scheduled resume time, in which case the first
// waiter to reach it reopens the gate itself.
package pause

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Resume reasons reported to the OnResume hook.
const (
	AutoResumeReason   = "auto-resume"
	ManualResumeReason = "manual"
)

// resumeEpsilon pads the wait for a scheduled resume so the wake lands
// just after the scheduled instant rather than just before it.
const resumeEpsilon = 50 * time.Millisecond

// Config configures a Controller.
type Config struct {
	Logger *slog.Logger

	// OnPause fires once per running->paused transition; OnResume fires
	// once per paused->running transition. Both are called outside the
	// controller's lock.
	OnPause  func(reason string, resumeAt time.Time)
	OnResume func(reason string)
}

// Controller is the pause gate. Safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	paused   bool
	reason   string
	resumeAt time.Time
	resumed  chan struct{} // closed on resume; replaced on pause

	logger   *slog.Logger
	onPause  func(reason string, resumeAt time.Time)
	onResume func(reason string)
}

// NewController creates an open (running) gate.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		logger:   logger,
		onPause:  cfg.OnPause,
		onResume: cfg.OnResume,
	}
}

// Pause closes the gate. resumeAt, when non-zero, schedules an automatic
// reopen. Idempotent: returns true only for the call that actually closed
// the gate; a pause while already paused changes nothing.
func (c *Controller) Pause(reason string, resumeAt time.Time) bool {
	c.mu.Lock()
	if c.paused {
		c.mu.Unlock()
		return false
	}
	c.paused = true
	c.reason = reason
	c.resumeAt = resumeAt
	c.resumed = make(chan struct{})
	c.mu.Unlock()

	args := []any{"reason", reason}
	if !resumeAt.IsZero() {
		args = append(args, "resume_at", resumeAt.Format(time.RFC3339))
	}
	c.logger.Warn("processing paused", args...)
	if c.onPause != nil {
		c.onPause(reason, resumeAt)
	}
	return true
}

// Resume reopens the gate and wakes all waiters. Idempotent.
func (c *Controller) Resume(reason string) {
	if reason == "" {
		reason = ManualResumeReason
	}

	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return
	}
	c.paused = false
	c.reason = ""
	c.resumeAt = time.Time{}
	close(c.resumed)
	c.mu.Unlock()

	c.logger.Info("processing resumed", "reason", reason)
	if c.onResume != nil {
		c.onResume(reason)
	}
}

// ScheduleResume sets or replaces the scheduled reopen time without
// changing the current state.
func (c *Controller) ScheduleResume(at time.Time) {
	c.mu.Lock()
	c.resumeAt = at
	c.mu.Unlock()
}

// IsPaused reports whether the gate is closed.
func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// State returns the gate state for status surfaces.
func (c *Controller) State() (paused bool, reason string, resumeAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused, c.reason, c.resumeAt
}

// WaitIfPaused returns immediately when the gate is open. Otherwise it
// blocks until the gate reopens or ctx is cancelled. If the pause carries
// a scheduled resume time, the first waiter past it performs the resume
// itself, so a lost timer cannot strand the run.
func (c *Controller) WaitIfPaused(ctx context.Context) error {
	for {
		c.mu.Lock()
		if !c.paused {
			c.mu.Unlock()
			return nil
		}
		gate := c.resumed
		resumeAt := c.resumeAt
		c.mu.Unlock()

		if resumeAt.IsZero() {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-gate:
			}
			continue
		}

		wait := time.Until(resumeAt) + resumeEpsilon
		if wait <= 0 {
			c.Resume(AutoResumeReason)
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-gate:
			timer.Stop()
		case <-timer.C:
			c.Resume(AutoResumeReason)
		}
	}
}
