//go:build windows

package probe

import (
	"strings"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"

	"tools.zach/dev/nowcord/internal/procs"
)

var (
	user32                       = windows.NewLazySystemDLL("user32.dll")
	procEnumWindows              = user32.NewProc("EnumWindows")
	procGetWindowTextW           = user32.NewProc("GetWindowTextW")
	procIsWindowVisible          = user32.NewProc("IsWindowVisible")
	procGetWindowThreadProcessId = user32.NewProc("GetWindowThreadProcessId")
)

// enumState carries per-enumeration inputs and the captured title through
// the EnumWindows callback's lparam.
type enumState struct {
	owners map[uint32]bool
	title  string
}

// enumCallback is registered once; NewCallback allocations are permanent.
var enumCallback = syscall.NewCallback(func(hwnd uintptr, lparam uintptr) uintptr {
	state := (*enumState)(unsafe.Pointer(lparam))

	if visible, _, _ := procIsWindowVisible.Call(hwnd); visible == 0 {
		return 1
	}
	var pid uint32
	procGetWindowThreadProcessId.Call(hwnd, uintptr(unsafe.Pointer(&pid)))
	if !state.owners[pid] {
		return 1
	}

	var buf [512]uint16
	n, _, _ := procGetWindowTextW.Call(hwnd, uintptr(unsafe.Pointer(&buf[0])), uintptr(len(buf)))
	if n == 0 {
		return 1
	}
	state.title = windows.UTF16ToString(buf[:n])
	return 0 // stop enumeration
})

// clientWindowTitle returns the title of the first visible top-level window
// owned by a process whose name contains processSubstr.
func clientWindowTitle(processSubstr string) (string, bool) {
	snapshot, err := procs.Snapshot()
	if err != nil {
		return "", false
	}

	state := &enumState{owners: make(map[uint32]bool)}
	for _, p := range procs.FindByName(snapshot, processSubstr) {
		state.owners[uint32(p.PID)] = true
	}
	if len(state.owners) == 0 {
		return "", false
	}

	procEnumWindows.Call(enumCallback, uintptr(unsafe.Pointer(state)))

	if strings.TrimSpace(state.title) == "" {
		return "", false
	}
	return state.title, true
}
