package store

import (
	"fmt"
	"os"
	"strings"

	"tools.zach/dev/nowcord/internal/atomicfile"
	"tools.zach/dev/nowcord/internal/config"
)

// GetScalar reads one key from the .env file.
func GetScalar(envPath, key string) (string, bool) {
	env, err := config.LoadEnv(envPath)
	if err != nil {
		return "", false
	}
	v, ok := env[key]
	return v, ok
}

// SetScalar writes one key into the .env file atomically, replacing an
// existing assignment in place (preserving every other line, comments
// included) or appending a new one. Used to persist the Steam cookie and
// similar settings the user changes at runtime.
func SetScalar(envPath, key, value string) error {
	var lines []string
	data, err := os.ReadFile(envPath)
	switch {
	case err == nil:
		lines = strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	case os.IsNotExist(err):
		// start a fresh file
	default:
		return fmt.Errorf("read env file: %w", err)
	}

	assignment := key + "=" + value
	replaced := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}
		name, _, ok := strings.Cut(trimmed, "=")
		if ok && strings.TrimSpace(name) == key {
			lines[i] = assignment
			replaced = true
			break
		}
	}
	if !replaced {
		lines = append(lines, assignment)
	}

	out := strings.Join(lines, "\n") + "\n"
	if err := atomicfile.Write(envPath, []byte(out), 0o600); err != nil {
		return fmt.Errorf("save env file: %w", err)
	}
	return nil
}
