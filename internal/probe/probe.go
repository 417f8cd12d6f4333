// Package probe detects what the GeForce NOW client is doing by polling OS
// process and window state. A poll yields one of three results: the client
// is not running, it is running but sitting in the launcher/menu, or it is
// streaming a game whose name appears in the foreground window title.
package probe

import (
	"tools.zach/dev/nowcord/internal/procs"
)

// defaultClientProcess is the substring matched against process names to
// find the streaming client.
const defaultClientProcess = "geforcenow"

// Kind classifies a poll result.
type Kind int

const (
	// KindAbsent means the streaming client process is not running.
	KindAbsent Kind = iota
	// KindIdle means the client is running with no distinguishable title.
	KindIdle
	// KindTitle means a game title was captured from the client's window.
	KindTitle
)

// Result is the outcome of one poll.
type Result struct {
	// Kind classifies the result.
	Kind Kind
	// RawTitle is the uncleaned window title; set only for KindTitle.
	RawTitle string
}

// Prober polls the streaming client's process and window state.
type Prober struct {
	// ClientProcess is the process-name substring identifying the client.
	ClientProcess string
	// IsIdleTitle reports whether a cleaned title is the launcher/menu
	// rather than a game. Empty cleaned titles are always idle.
	IsIdleTitle func(clean string) bool

	// injectable for tests
	snapshot    func() ([]procs.Process, error)
	windowTitle func(processSubstr string) (string, bool)
}

// New creates a Prober with the default client process name. isIdle may be
// nil, in which case only an empty cleaned title counts as idle.
func New(isIdle func(string) bool) *Prober {
	return &Prober{
		ClientProcess: defaultClientProcess,
		IsIdleTitle:   isIdle,
		snapshot:      procs.Snapshot,
		windowTitle:   clientWindowTitle,
	}
}

// Poll samples process and window state once.
func (p *Prober) Poll() Result {
	snapshot, err := p.snapshot()
	if err != nil || len(procs.FindByName(snapshot, p.ClientProcess)) == 0 {
		return Result{Kind: KindAbsent}
	}

	raw, ok := p.windowTitle(p.ClientProcess)
	if !ok {
		return Result{Kind: KindIdle}
	}

	clean := CleanTitle(raw)
	if clean == "" || (p.IsIdleTitle != nil && p.IsIdleTitle(clean)) {
		return Result{Kind: KindIdle}
	}
	return Result{Kind: KindTitle, RawTitle: raw}
}
