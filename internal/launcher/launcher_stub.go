//go:build !windows

package launcher

import "fmt"

// Client launching is Windows-only; elsewhere the daemon just waits for
// the clients to appear.

func launchGeForce() error {
	return fmt.Errorf("automatic GeForce NOW launch is only supported on Windows")
}

func launchDiscord() error {
	return fmt.Errorf("automatic Discord launch is only supported on Windows")
}
