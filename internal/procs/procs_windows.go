//go:build windows

package procs

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Snapshot enumerates all processes via a toolhelp snapshot. Executable
// paths are resolved with QueryFullProcessImageName where access allows;
// entries we cannot open still appear with Name only.
func Snapshot() ([]Process, error) {
	handle, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, fmt.Errorf("create process snapshot: %w", err)
	}
	defer windows.CloseHandle(handle)

	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))

	if err := windows.Process32First(handle, &entry); err != nil {
		return nil, fmt.Errorf("read process snapshot: %w", err)
	}

	var out []Process
	for {
		p := Process{
			PID:  int(entry.ProcessID),
			Name: windows.UTF16ToString(entry.ExeFile[:]),
		}
		p.Exe = exePath(entry.ProcessID)
		out = append(out, p)

		if err := windows.Process32Next(handle, &entry); err != nil {
			break
		}
	}
	return out, nil
}

// exePath resolves the full image path for a PID, or "" when the process
// cannot be opened.
func exePath(pid uint32) string {
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, pid)
	if err != nil {
		return ""
	}
	defer windows.CloseHandle(h)

	var buf [windows.MAX_LONG_PATH]uint16
	size := uint32(len(buf))
	if err := windows.QueryFullProcessImageName(h, 0, &buf[0], &size); err != nil {
		return ""
	}
	return windows.UTF16ToString(buf[:size])
}

// Terminate forcibly ends the process. Windows has no portable graceful
// signal for GUI-less children, so Terminate and Kill are the same call.
func Terminate(pid int) error {
	return terminate(pid)
}

// Kill forcibly ends the process.
func Kill(pid int) error {
	return terminate(pid)
}

func terminate(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return fmt.Errorf("open process %d: %w", pid, err)
	}
	defer windows.CloseHandle(h)

	if err := windows.TerminateProcess(h, 1); err != nil {
		return fmt.Errorf("terminate process %d: %w", pid, err)
	}
	return nil
}
