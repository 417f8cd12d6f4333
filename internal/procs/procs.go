// Package procs provides cross-platform process enumeration and termination.
//
// The daemon uses it three ways: detecting whether the GeForce NOW and
// Discord clients are running, finding stray placeholder processes left
// under the fake-game temp directory after an unclean shutdown, and
// stopping those processes.
package procs

import (
	"path/filepath"
	"strings"
)

// Process describes one entry from a process snapshot.
type Process struct {
	// PID is the OS process identifier.
	PID int
	// Name is the short executable name (e.g. "GeForceNOW.exe").
	Name string
	// Exe is the full executable path. May be empty when the snapshot
	// could not resolve it (insufficient rights on another user's process).
	Exe string
}

// ///////////////////////////////////////////////
// Queries
// ///////////////////////////////////////////////

// FindByName returns the processes whose short name contains substr,
// compared case-insensitively.
func FindByName(snapshot []Process, substr string) []Process {
	substr = strings.ToLower(substr)
	var out []Process
	for _, p := range snapshot {
		if strings.Contains(strings.ToLower(p.Name), substr) {
			out = append(out, p)
		}
	}
	return out
}

// FindUnderDir returns the processes whose executable path is rooted under
// dir. Used to sweep stray placeholder processes out of the fake-game temp
// directory.
func FindUnderDir(snapshot []Process, dir string) []Process {
	dir = filepath.Clean(dir)
	var out []Process
	for _, p := range snapshot {
		if p.Exe == "" {
			continue
		}
		rel, err := filepath.Rel(dir, filepath.Clean(p.Exe))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// IsRunning reports whether any process in a fresh snapshot matches substr.
// Snapshot errors are treated as "not running" since every caller retries
// on the next tick anyway.
func IsRunning(substr string) bool {
	snapshot, err := Snapshot()
	if err != nil {
		return false
	}
	return len(FindByName(snapshot, substr)) > 0
}
