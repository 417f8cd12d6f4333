//go:build !windows

package keepalive

// Synthetic input is Windows-only; elsewhere the nudge is a no-op and the
// task just ticks.
func sendJitter() error {
	return nil
}
