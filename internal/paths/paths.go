// Package paths centralizes file and directory names used across the project.
// All data directory file names are defined here as the single source of truth.
package paths

import "path/filepath"

// ///////////////////////////////////////////////
// Constants
// ///////////////////////////////////////////////

// Data directory file names.
const (
	PIDFile            = "daemon.pid"
	ConfigFile         = "config.toml"
	EnvFile            = ".env"
	LogFile            = "daemon.log"
	GamesPointerFile   = "games_path.txt"
	GamesFile          = "games.json"
	DirectoryCacheFile = "directory-cache.json"
	ForceFile          = "force.json"
)

// BinaryName is the daemon executable name.
const BinaryName = "nowcord"

// DataDirRel is the default data directory, relative to $HOME.
const DataDirRel = ".nowcord"

// FakeGameDirName is the temp-directory name under which synthetic game
// executables are staged. Process sweeps key off this name, so it must stay
// stable across versions.
const FakeGameDirName = "nowcord_fake_game"

// ReleaseManifest is the release manifest path relative to the repo root,
// fetched by the update check.
const ReleaseManifest = ".release-manifest.json"

// ///////////////////////////////////////////////
// DataDir
// ///////////////////////////////////////////////

// DataDir provides path construction methods rooted at a data directory.
type DataDir struct {
	Root string
}

// PID returns the full path to the PID file.
func (d DataDir) PID() string { return filepath.Join(d.Root, PIDFile) }

// Config returns the full path to the config file.
func (d DataDir) Config() string { return filepath.Join(d.Root, ConfigFile) }

// Env returns the full path to the legacy key=value environment file.
func (d DataDir) Env() string { return filepath.Join(d.Root, EnvFile) }

// Log returns the full path to the log file.
func (d DataDir) Log() string { return filepath.Join(d.Root, LogFile) }

// GamesPointer returns the full path to the pointer file that holds the
// location of the games mapping JSON.
func (d DataDir) GamesPointer() string { return filepath.Join(d.Root, GamesPointerFile) }

// Games returns the default full path for the games mapping JSON, used when
// the pointer file is absent.
func (d DataDir) Games() string { return filepath.Join(d.Root, GamesFile) }

// DirectoryCache returns the full path to the detectable-apps cache file.
func (d DataDir) DirectoryCache() string { return filepath.Join(d.Root, DirectoryCacheFile) }

// Force returns the full path to the operator force-override file.
func (d DataDir) Force() string { return filepath.Join(d.Root, ForceFile) }
