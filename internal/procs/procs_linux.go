//go:build linux

package procs

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Snapshot enumerates all processes by scanning /proc. Executable paths
// come from the /proc/<pid>/exe symlink, which is only readable for our
// own processes without elevated rights; unreadable entries keep Name only.
func Snapshot() ([]Process, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, fmt.Errorf("read /proc: %w", err)
	}

	var out []Process
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}

		comm, err := os.ReadFile(filepath.Join("/proc", e.Name(), "comm"))
		if err != nil {
			// Process exited between ReadDir and here.
			continue
		}

		p := Process{
			PID:  pid,
			Name: strings.TrimSpace(string(comm)),
		}
		if exe, err := os.Readlink(filepath.Join("/proc", e.Name(), "exe")); err == nil {
			p.Exe = exe
		}
		out = append(out, p)
	}
	return out, nil
}

// Terminate sends SIGTERM, giving the process a chance to clean up.
func Terminate(pid int) error {
	if err := unix.Kill(pid, unix.SIGTERM); err != nil {
		return fmt.Errorf("signal process %d: %w", pid, err)
	}
	return nil
}

// Kill sends SIGKILL.
func Kill(pid int) error {
	if err := unix.Kill(pid, unix.SIGKILL); err != nil {
		return fmt.Errorf("kill process %d: %w", pid, err)
	}
	return nil
}
