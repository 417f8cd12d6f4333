// Operator force-override: writing force.json into the data directory pins
// the active game; removing the file clears the pin.
package main

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// forceDoc is the override file payload.
type forceDoc struct {
	Name string `json:"name"`
}

// readForce returns the pinned game name, or "" when the file is absent or
// unreadable. A present-but-broken file is treated as no pin, loudly.
func readForce(path string, log *slog.Logger) string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn("force file unreadable", "path", path, "error", err)
		}
		return ""
	}
	var doc forceDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn("force file malformed", "path", path, "error", err)
		return ""
	}
	return doc.Name
}

// watchForce applies the override file's state now and on every change,
// via fsnotify on the data directory with a polling fallback when the
// watcher cannot be created. Returns a stop function.
func watchForce(path string, apply func(name string), log *slog.Logger) func() {
	apply(readForce(path, log))

	watcher, err := fsnotify.NewWatcher()
	if err == nil {
		err = watcher.Add(filepath.Dir(path))
	}
	if err != nil {
		log.Warn("force watcher unavailable, polling instead", "error", err)
		return pollForce(path, apply, log)
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) == filepath.Base(path) {
					apply(readForce(path, log))
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Debug("force watcher error", "error", watchErr)
			}
		}
	}()
	return func() {
		close(done)
		watcher.Close()
	}
}

// pollForce is the fallback watcher: re-read the override file on a short
// fixed interval.
func pollForce(path string, apply func(name string), log *slog.Logger) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		var lastMod time.Time
		var lastSeen bool
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				info, statErr := os.Stat(path)
				seen := statErr == nil
				var mod time.Time
				if seen {
					mod = info.ModTime()
				}
				if seen != lastSeen || mod != lastMod {
					lastSeen, lastMod = seen, mod
					apply(readForce(path, log))
				}
			}
		}
	}()
	return func() { close(done) }
}
