// Package fakeproc manages the synthetic placeholder process that stands in
// for the cloud-side game, giving Discord's process detection something
// local to see.
//
// The placeholder is this daemon's own binary, copied under a temp
// directory to the executable path the application directory declares for
// the game, and launched with a marker env var that makes it idle instead
// of starting another daemon. At most one placeholder runs at a time.
package fakeproc

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"tools.zach/dev/nowcord/internal/paths"
	"tools.zach/dev/nowcord/internal/procs"
)

// IdleEnv marks a re-exec of the daemon binary as a placeholder child.
// main checks it before anything else and parks instead of starting up.
const IdleEnv = "NOWCORD_PLACEHOLDER"

var (
	// stopWait bounds the graceful-terminate grace before the kill.
	stopWait = 3 * time.Second
	// releaseWait bounds retries of the binary copy while the previous
	// placeholder still holds the file open.
	releaseWait  = 3 * time.Second
	releaseDelay = 250 * time.Millisecond
)

// Idle parks a placeholder child until it is terminated.
func Idle() {
	select {}
}

// child is one running placeholder.
type child struct {
	pid  int
	path string
	done chan error
}

// Controller owns the placeholder lifecycle.
type Controller struct {
	// Root is the temp directory placeholders live under.
	Root string
	Log  *slog.Logger

	mu  sync.Mutex
	cur *child

	start     func(target string) (*child, error)
	snapshot  func() ([]procs.Process, error)
	terminate func(pid int) error
	kill      func(pid int) error
	binary    func() (string, error)
}

// New creates a Controller rooted in the system temp directory.
func New(log *slog.Logger) *Controller {
	return &Controller{
		Root:      filepath.Join(os.TempDir(), paths.FakeGameDirName),
		Log:       log,
		start:     startPlaceholder,
		snapshot:  procs.Snapshot,
		terminate: procs.Terminate,
		kill:      procs.Kill,
		binary:    os.Executable,
	}
}

// EnsureRunning makes the placeholder for executablePath the one running
// child, stopping any previous placeholder first. When the live child
// already matches the requested path this is a no-op.
func (c *Controller) EnsureRunning(executablePath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cur != nil && c.cur.path == executablePath && c.alive() {
		return nil
	}
	c.stopChild()

	target := filepath.Join(c.Root, filepath.FromSlash(executablePath))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create placeholder dir: %w", err)
	}
	if err := c.install(target); err != nil {
		return fmt.Errorf("install placeholder: %w", err)
	}

	ch, err := c.start(target)
	if err != nil {
		return fmt.Errorf("start placeholder: %w", err)
	}
	ch.path = executablePath
	c.cur = ch
	c.Log.Info("placeholder started", "exe", executablePath, "pid", ch.pid)
	return nil
}

// Stop terminates the managed child, sweeps any stray placeholder rooted
// under the temp directory, and removes the directory. Safe to call
// repeatedly and on a controller that never started anything.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopChild()
	c.mu.Unlock()

	c.sweep()
	if err := os.RemoveAll(c.Root); err != nil {
		c.Log.Debug("placeholder dir not removed", "dir", c.Root, "error", err)
	}
}

// alive reports whether the current child has not exited yet.
// Caller holds c.mu.
func (c *Controller) alive() bool {
	select {
	case <-c.cur.done:
		return false
	default:
		return true
	}
}

// stopChild terminates the current child: graceful first, kill after the
// grace period. Caller holds c.mu.
func (c *Controller) stopChild() {
	if c.cur == nil {
		return
	}
	ch := c.cur
	c.cur = nil

	if err := c.terminate(ch.pid); err != nil {
		c.Log.Debug("placeholder terminate failed", "pid", ch.pid, "error", err)
	}
	select {
	case <-ch.done:
		return
	case <-time.After(stopWait):
	}
	if err := c.kill(ch.pid); err != nil {
		c.Log.Debug("placeholder kill failed", "pid", ch.pid, "error", err)
	}
	select {
	case <-ch.done:
	case <-time.After(stopWait):
		c.Log.Warn("placeholder did not exit", "pid", ch.pid)
	}
}

// sweep kills any process still executing out of the temp directory.
// Catches placeholders orphaned by an earlier unclean shutdown.
func (c *Controller) sweep() {
	snapshot, err := c.snapshot()
	if err != nil {
		return
	}
	for _, p := range procs.FindUnderDir(snapshot, c.Root) {
		c.Log.Info("sweeping stray placeholder", "pid", p.PID, "exe", p.Exe)
		if err := c.terminate(p.PID); err != nil {
			c.kill(p.PID)
		}
	}
}

// install copies the daemon binary to target unless it is already there.
// The copy is retried briefly: on Windows the file stays locked until the
// previous placeholder has fully exited.
func (c *Controller) install(target string) error {
	if _, err := os.Stat(target); err == nil {
		return nil
	}
	src, err := c.binary()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(releaseWait)
	for {
		err = copyFile(src, target)
		if err == nil || time.Now().After(deadline) {
			return err
		}
		time.Sleep(releaseDelay)
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o755)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// startPlaceholder launches target as an idling child.
func startPlaceholder(target string) (*child, error) {
	cmd := exec.Command(target)
	cmd.Env = append(os.Environ(), IdleEnv+"=1")
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	return &child{pid: cmd.Process.Pid, done: done}, nil
}
