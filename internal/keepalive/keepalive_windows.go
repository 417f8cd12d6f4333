//go:build windows

package keepalive

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32        = windows.NewLazySystemDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const mouseEventfMove = 0x0001

// Layouts of the Win32 INPUT / MOUSEINPUT structs on 64-bit Windows.
type mouseInput struct {
	dx        int32
	dy        int32
	mouseData uint32
	flags     uint32
	time      uint32
	_         uint32
	extraInfo uintptr
}

type input struct {
	inputType uint32
	_         uint32
	mi        mouseInput
}

// sendJitter moves the cursor one pixel right then back. Relative moves
// cancel out, so the pointer ends where it started but the session sees
// activity.
func sendJitter() error {
	inputs := [2]input{
		{mi: mouseInput{dx: 1, flags: mouseEventfMove}},
		{mi: mouseInput{dx: -1, flags: mouseEventfMove}},
	}
	sent, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if sent != uintptr(len(inputs)) {
		return fmt.Errorf("SendInput sent %d of %d events: %v", sent, len(inputs), err)
	}
	return nil
}
