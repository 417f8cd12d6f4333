//go:build !windows

package probe

// clientWindowTitle has no implementation off Windows; the streaming client
// only ships there, so polls report Absent before this is ever consulted.
func clientWindowTitle(string) (string, bool) {
	return "", false
}
