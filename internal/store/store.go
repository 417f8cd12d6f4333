// Package store persists the game-name→identity mapping that drives
// presence resolution, plus the small scalar settings kept in the .env file.
//
// The mapping is a single JSON document read whole and written whole; every
// mutation saves immediately through an atomic write, trading write
// amplification for crash safety at the low update rate of one mutation per
// polling tick at most. The store is also the synchronization point between
// the polling loop and the detached directory-reconciliation task: all
// access goes through a mutex.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"

	"tools.zach/dev/nowcord/internal/atomicfile"
)

// ///////////////////////////////////////////////
// GameRecord
// ///////////////////////////////////////////////

// GameRecord is one entry of the games mapping, keyed case-insensitively by
// canonical name. Absent identifiers are a normal state: they trigger
// resolution attempts on later ticks, never errors. The JSON keys match the
// mapping files older installs already have.
type GameRecord struct {
	// Name is the canonical display name.
	Name string `json:"name"`
	// SteamAppID is the storefront catalog identifier, when known.
	SteamAppID string `json:"steam_appid,omitempty"`
	// DiscordAppID is the Discord application identity used for presence
	// attribution, when known.
	DiscordAppID string `json:"client_id,omitempty"`
	// ExecutablePath keys the synthetic placeholder process, when known.
	ExecutablePath string `json:"executable_path,omitempty"`
	// Image is the large presence image key.
	Image string `json:"image,omitempty"`
	// IconKey is the small presence image key.
	IconKey string `json:"icon_key,omitempty"`
	// StateText is a fixed details line used when no scraped status exists.
	StateText string `json:"state_text,omitempty"`
}

// ///////////////////////////////////////////////
// Store
// ///////////////////////////////////////////////

// Store holds the in-memory mapping and its backing file.
type Store struct {
	path string

	mu    sync.Mutex
	games map[string]GameRecord
}

// Open loads the mapping at path. A missing or corrupt file yields a
// usable empty store together with the error, so the caller can surface
// the problem without losing the bootstrap path: records created from then
// on persist normally.
func Open(path string) (*Store, error) {
	s := &Store{path: path, games: make(map[string]GameRecord)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read games mapping: %w", err)
	}

	var games map[string]GameRecord
	if err := json.Unmarshal(data, &games); err != nil {
		return s, fmt.Errorf("parse games mapping: %w", err)
	}
	s.games = games
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.games)
}

// Lookup finds a record by name, case-insensitively.
func (s *Store) Lookup(name string) (GameRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.games[name]; ok {
		return rec, true
	}
	for key, rec := range s.games {
		if strings.EqualFold(key, name) {
			return rec, true
		}
	}
	return GameRecord{}, false
}

// Records returns a snapshot copy of the whole mapping, keyed as on disk.
func (s *Store) Records() map[string]GameRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]GameRecord, len(s.games))
	for k, v := range s.games {
		out[k] = v
	}
	return out
}

// Put inserts or replaces a record under its name and persists the mapping.
func (s *Store) Put(rec GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.games[s.keyFor(rec.Name)] = rec
	return s.save()
}

// Apply runs a read-modify-write on one record under the store lock and
// persists the result. The update func receives the current record (zero
// with ok=false when absent) and returns the replacement. This is how the
// detached reconciliation task hands its completed result back without
// racing the polling loop's own mutations.
func (s *Store) Apply(name string, update func(rec GameRecord, ok bool) GameRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := s.keyFor(name)
	rec, ok := s.games[key]
	s.games[key] = update(rec, ok)
	return s.save()
}

// keyFor returns the existing case-insensitive key for name, or name
// itself for a new record. Must be called with s.mu held.
func (s *Store) keyFor(name string) string {
	if _, ok := s.games[name]; ok {
		return name
	}
	for key := range s.games {
		if strings.EqualFold(key, name) {
			return key
		}
	}
	return name
}

// save writes the whole mapping atomically. Must be called with s.mu held.
func (s *Store) save() error {
	if err := atomicfile.WriteJSON(s.path, s.games, 0o644); err != nil {
		return fmt.Errorf("save games mapping: %w", err)
	}
	return nil
}

// Reload re-reads the backing file, replacing the in-memory mapping. Used
// after the user relocates or hand-edits the mapping file.
func (s *Store) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read games mapping: %w", err)
	}
	var games map[string]GameRecord
	if err := json.Unmarshal(data, &games); err != nil {
		return fmt.Errorf("parse games mapping: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.games = games
	return nil
}
