//go:build !windows && !linux

package procs

import (
	"fmt"
	"syscall"
)

// Snapshot returns an empty snapshot on platforms without an enumeration
// implementation. The streaming client only ships for Windows, so the
// daemon's detection loop simply reports Absent here.
func Snapshot() ([]Process, error) {
	return nil, nil
}

// Terminate sends SIGTERM.
func Terminate(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	return nil
}

// Kill sends SIGKILL.
func Kill(pid int) error {
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	return nil
}
