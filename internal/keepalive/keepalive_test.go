package keepalive

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRun_TicksUntilCanceled(t *testing.T) {
	task := New(5*time.Millisecond, testLogger())
	var nudges atomic.Int32
	task.jitter = func() error {
		nudges.Add(1)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		task.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on context cancel")
	}
	if n := nudges.Load(); n < 2 {
		t.Errorf("nudges = %d, want at least 2", n)
	}
}

func TestRun_KeepsTickingAfterInputFailure(t *testing.T) {
	task := New(5*time.Millisecond, testLogger())
	var calls atomic.Int32
	task.jitter = func() error {
		calls.Add(1)
		return errors.New("no input desktop")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	task.Run(ctx)

	if n := calls.Load(); n < 2 {
		t.Errorf("task stopped after failure, calls = %d", n)
	}
}
