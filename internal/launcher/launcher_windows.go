//go:build windows

package launcher

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// launchGeForce starts the GeForce NOW client from its per-user install.
func launchGeForce() error {
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		return fmt.Errorf("LOCALAPPDATA not set")
	}
	exe := filepath.Join(localAppData, "NVIDIA Corporation", "GeForceNOW", "CEF", "GeForceNOW.exe")
	if _, err := os.Stat(exe); err != nil {
		return fmt.Errorf("GeForce NOW not found at %s: %w", exe, err)
	}
	return startDetached(exe)
}

// launchDiscord starts Discord through its updater, the same entry point
// the Start Menu shortcut uses.
func launchDiscord() error {
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		return fmt.Errorf("LOCALAPPDATA not set")
	}
	updater := filepath.Join(localAppData, "Discord", "Update.exe")
	if _, err := os.Stat(updater); err != nil {
		return fmt.Errorf("Discord not found at %s: %w", updater, err)
	}
	return startDetached(updater, "--processStart", "Discord.exe")
}

// startDetached launches the program and releases the handle so the client
// outlives the daemon.
func startDetached(exe string, args ...string) error {
	cmd := exec.Command(exe, args...)
	cmd.Dir = filepath.Dir(exe)
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}
