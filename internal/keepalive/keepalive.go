// Package keepalive nudges the streaming session with a tiny synthetic
// input at a fixed interval, so GeForce NOW's inactivity watchdog does not
// end the session while the user is watching rather than playing.
package keepalive

import (
	"context"
	"log/slog"
	"time"
)

// Task periodically emits a one-pixel mouse jitter.
type Task struct {
	// Interval is the time between nudges.
	Interval time.Duration
	Log      *slog.Logger

	jitter func() error
}

// New creates a Task with the platform input backend.
func New(interval time.Duration, log *slog.Logger) *Task {
	return &Task{Interval: interval, Log: log, jitter: sendJitter}
}

// Run emits a nudge every Interval until ctx is canceled. Input failures
// are logged and the task keeps ticking.
func (t *Task) Run(ctx context.Context) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := t.jitter(); err != nil {
				t.Log.Warn("keepalive input failed", "error", err)
			} else {
				t.Log.Debug("keepalive nudge sent")
			}
		}
	}
}
