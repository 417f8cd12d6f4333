// Package config provides configuration loading and defaults for the nowcord daemon.
//
// Configuration is loaded from a TOML file in the user's data directory,
// then overlaid with values from a legacy .env file kept for compatibility
// with older installs. The package handles Discord connection settings,
// detection tuning, directory-matching thresholds, and daemon behavior
// with sensible defaults.
package config

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/bmatcuk/doublestar/v4"
	"tools.zach/dev/nowcord/internal/atomicfile"
	"tools.zach/dev/nowcord/internal/paths"
)

// DefaultDiscordAppID is the Discord application ID used for presence when a
// game has no application identity of its own: the generic "GeForce NOW" app.
const DefaultDiscordAppID = "1095416975028650046"

// ///////////////////////////////////////////////
// Configuration Types
// ///////////////////////////////////////////////

// Config represents the top-level application configuration.
type Config struct {
	// Discord holds Discord connection settings.
	Discord DiscordConfig `toml:"discord"`
	// Behavior holds daemon behavior and polling settings.
	Behavior BehaviorConfig `toml:"behavior"`
	// Detection holds window-title detection settings.
	Detection DetectionConfig `toml:"detection"`
	// Directory holds detectable-application directory settings.
	Directory DirectoryConfig `toml:"directory"`
	// Storefront holds Steam search and rich-presence scraping settings.
	Storefront StorefrontConfig `toml:"storefront"`
	// Feed holds optional local presence feed settings.
	Feed FeedConfig `toml:"feed"`
	// Log holds logging settings.
	Log LogConfig `toml:"log"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	// AppID is the fallback Discord application ID for Rich Presence.
	AppID string `toml:"app_id"`
}

// BehaviorConfig holds daemon behavior settings.
type BehaviorConfig struct {
	// PollIntervalSeconds is the reconciliation tick interval.
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	// ReconnectIntervalSeconds is the Discord reconnect interval.
	ReconnectIntervalSeconds int `toml:"reconnect_interval_seconds"`
	// LaunchGeForce starts the GeForce NOW client at daemon startup if absent.
	LaunchGeForce bool `toml:"launch_geforce"`
	// LaunchDiscord starts the Discord client at daemon startup if absent.
	LaunchDiscord bool `toml:"launch_discord"`
	// Keepalive enables the periodic input-jitter task that prevents the
	// streaming session from idling out.
	Keepalive bool `toml:"keepalive"`
	// KeepaliveIntervalMinutes is how often the jitter task fires.
	KeepaliveIntervalMinutes int `toml:"keepalive_interval_minutes"`
	// CheckUpdates enables the startup release-manifest version check.
	CheckUpdates bool `toml:"check_updates"`
}

// DetectionConfig holds window-title detection settings.
type DetectionConfig struct {
	// IdleTitles lists cleaned titles treated as the launcher/menu rather
	// than a game. Compared case-insensitively.
	IdleTitles []string `toml:"idle_titles"`
	// Ignore is a list of glob patterns for cleaned titles that should never
	// produce presence (e.g. "Steam*" to hide everything from one publisher).
	Ignore []string `toml:"ignore"`
}

// DirectoryConfig holds detectable-application directory settings.
type DirectoryConfig struct {
	// URL is the detectable-applications directory endpoint.
	URL string `toml:"url"`
	// CacheTTLSeconds is how long the on-disk directory snapshot stays fresh.
	CacheTTLSeconds int `toml:"cache_ttl_seconds"`
	// AutoApplyThreshold is the similarity score at or above which a
	// directory match is applied without confirmation.
	AutoApplyThreshold float64 `toml:"auto_apply_threshold"`
	// NoiseFloor is the minimum similarity for an entry to be a candidate.
	NoiseFloor float64 `toml:"noise_floor"`
	// MaxCandidates caps how many candidates are offered for confirmation.
	MaxCandidates int `toml:"max_candidates"`
	// ConfirmTimeoutSeconds bounds the wait for a human confirmation.
	ConfirmTimeoutSeconds int `toml:"confirm_timeout_seconds"`
}

// StorefrontConfig holds Steam search and rich-presence scraping settings.
type StorefrontConfig struct {
	// SearchURL is the Steam app name-search endpoint (appended: /<query>).
	SearchURL string `toml:"search_url"`
	// RichPresenceURL is the rich-presence test page used for scraping.
	RichPresenceURL string `toml:"rich_presence_url"`
	// Cookie is the Steam session cookie sent with scraping requests.
	// Opaque to the daemon; usually provided through the .env overlay.
	Cookie string `toml:"cookie,omitempty"`
}

// FeedConfig holds optional local presence feed settings.
type FeedConfig struct {
	// Enabled turns on polling of the local presence feed.
	Enabled bool `toml:"enabled"`
	// Port is the localhost port the feed listens on.
	Port int `toml:"port"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the minimum log level (trace, debug, info, warn, error).
	Level string `toml:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation.
	MaxSizeMB int `toml:"max_size_mb"`
}

// ///////////////////////////////////////////////
// Default Configuration
// ///////////////////////////////////////////////

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Discord: DiscordConfig{
			AppID: DefaultDiscordAppID,
		},
		Behavior: BehaviorConfig{
			PollIntervalSeconds:      10,
			ReconnectIntervalSeconds: 15,
			LaunchGeForce:            true,
			LaunchDiscord:            true,
			Keepalive:                true,
			KeepaliveIntervalMinutes: 4,
			CheckUpdates:             true,
		},
		Detection: DetectionConfig{
			IdleTitles: []string{"", "games", "geforce now"},
			Ignore:     []string{},
		},
		Directory: DirectoryConfig{
			URL:                   "https://discord.com/api/v9/applications/detectable",
			CacheTTLSeconds:       3600,
			AutoApplyThreshold:    0.88,
			NoiseFloor:            0.35,
			MaxCandidates:         6,
			ConfirmTimeoutSeconds: 30,
		},
		Storefront: StorefrontConfig{
			SearchURL:       "https://steamcommunity.com/actions/SearchApps",
			RichPresenceURL: "https://steamcommunity.com/dev/testrichpresence",
		},
		Feed: FeedConfig{
			Enabled: false,
			Port:    5000,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 10,
		},
	}
}

// ///////////////////////////////////////////////
// Loading and Saving
// ///////////////////////////////////////////////

// Load reads and parses the configuration file from dataDir/config.toml,
// then applies the legacy .env overlay from dataDir/.env if present.
// If the TOML file doesn't exist, defaults are used (and the .env overlay
// still applies, so pre-TOML installs keep working unchanged).
func Load(dataDir string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(dataDir, paths.ConfigFile)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	env, err := LoadEnv(filepath.Join(dataDir, paths.EnvFile))
	if err != nil {
		return nil, fmt.Errorf("read env overlay: %w", err)
	}
	cfg.applyEnv(env)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk as TOML using atomic file write.
func (c *Config) Save(path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return atomicfile.Write(path, buf.Bytes(), 0o644)
}

// ///////////////////////////////////////////////
// Legacy .env Overlay
// ///////////////////////////////////////////////

// Recognized .env keys, kept for compatibility with older installs.
const (
	EnvClientID       = "CLIENT_ID"
	EnvUpdateInterval = "UPDATE_INTERVAL"
	EnvConfigPathFile = "CONFIG_PATH_FILE"
	EnvTestRichURL    = "TEST_RICH_URL"
	EnvSteamCookie    = "STEAM_COOKIE"
)

// LoadEnv parses a KEY=VALUE env file. Blank lines and lines starting with
// '#' are skipped; values may be wrapped in single or double quotes.
// A missing file yields an empty map, not an error.
func LoadEnv(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	env := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		env[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return env, nil
}

// applyEnv overlays recognized .env values onto the config. Env values win
// over TOML because older installs only ever edited the .env file.
func (c *Config) applyEnv(env map[string]string) {
	if v := env[EnvClientID]; v != "" {
		c.Discord.AppID = v
	}
	if v := env[EnvUpdateInterval]; v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Behavior.PollIntervalSeconds = n
		} else {
			slog.Warn("ignoring invalid UPDATE_INTERVAL", "value", v)
		}
	}
	if v := env[EnvTestRichURL]; v != "" {
		c.Storefront.RichPresenceURL = v
	}
	if v := env[EnvSteamCookie]; v != "" {
		c.Storefront.Cookie = v
	}
}

// ///////////////////////////////////////////////
// Games Mapping Path Resolution
// ///////////////////////////////////////////////

// ResolveGamesPath returns the path of the games mapping JSON. The .env key
// CONFIG_PATH_FILE (or, absent that, the default pointer file in the data
// dir) names a pointer file whose contents are the literal mapping path;
// the indirection lets users relocate the mapping without touching the env
// file. With no pointer file the mapping lives in the data dir directly.
func ResolveGamesPath(dataDir string, env map[string]string) string {
	pointer := env[EnvConfigPathFile]
	if pointer == "" {
		pointer = filepath.Join(dataDir, paths.GamesPointerFile)
	} else if !filepath.IsAbs(pointer) {
		pointer = filepath.Join(dataDir, pointer)
	}

	data, err := os.ReadFile(pointer)
	if err != nil {
		return filepath.Join(dataDir, paths.GamesFile)
	}
	target := strings.TrimSpace(string(data))
	if target == "" {
		return filepath.Join(dataDir, paths.GamesFile)
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(dataDir, target)
	}
	return target
}

// ///////////////////////////////////////////////
// Validation
// ///////////////////////////////////////////////

// validLogLevels is the set of accepted log level strings.
var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate checks that all configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	if c.Discord.AppID == "" {
		return fmt.Errorf("discord.app_id must not be empty")
	}

	if c.Behavior.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll_interval_seconds must be > 0, got %d", c.Behavior.PollIntervalSeconds)
	}

	if c.Behavior.ReconnectIntervalSeconds <= 0 {
		return fmt.Errorf("reconnect_interval_seconds must be > 0, got %d", c.Behavior.ReconnectIntervalSeconds)
	}

	if c.Behavior.KeepaliveIntervalMinutes <= 0 {
		return fmt.Errorf("keepalive_interval_minutes must be > 0, got %d", c.Behavior.KeepaliveIntervalMinutes)
	}

	if c.Directory.CacheTTLSeconds <= 0 {
		return fmt.Errorf("directory.cache_ttl_seconds must be > 0, got %d", c.Directory.CacheTTLSeconds)
	}

	if c.Directory.AutoApplyThreshold < 0 || c.Directory.AutoApplyThreshold > 1 {
		return fmt.Errorf("directory.auto_apply_threshold must be in [0,1], got %g", c.Directory.AutoApplyThreshold)
	}

	if c.Directory.NoiseFloor < 0 || c.Directory.NoiseFloor > 1 {
		return fmt.Errorf("directory.noise_floor must be in [0,1], got %g", c.Directory.NoiseFloor)
	}

	if c.Directory.NoiseFloor > c.Directory.AutoApplyThreshold {
		return fmt.Errorf("directory.noise_floor (%g) must not exceed auto_apply_threshold (%g)",
			c.Directory.NoiseFloor, c.Directory.AutoApplyThreshold)
	}

	if c.Directory.MaxCandidates <= 0 {
		return fmt.Errorf("directory.max_candidates must be > 0, got %d", c.Directory.MaxCandidates)
	}

	if c.Directory.ConfirmTimeoutSeconds <= 0 {
		return fmt.Errorf("directory.confirm_timeout_seconds must be > 0, got %d", c.Directory.ConfirmTimeoutSeconds)
	}

	if c.Feed.Port <= 0 || c.Feed.Port > 65535 {
		return fmt.Errorf("feed.port must be in [1,65535], got %d", c.Feed.Port)
	}

	if !validLogLevels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("invalid log.level %q: must be trace, debug, info, warn, or error", c.Log.Level)
	}

	return nil
}

// ///////////////////////////////////////////////
// Detection Helpers
// ///////////////////////////////////////////////

// IsIdleTitle reports whether a cleaned title represents the launcher/menu
// state rather than a running game.
func (c *Config) IsIdleTitle(clean string) bool {
	lower := strings.ToLower(strings.TrimSpace(clean))
	for _, idle := range c.Detection.IdleTitles {
		if lower == strings.ToLower(idle) {
			return true
		}
	}
	return false
}

// IsIgnoredTitle reports whether a cleaned title matches any of the
// configured ignore patterns, in which case no presence is published for it.
func (c *Config) IsIgnoredTitle(clean string) bool {
	for _, pattern := range c.Detection.Ignore {
		matched, err := doublestar.Match(strings.ToLower(pattern), strings.ToLower(clean))
		if err != nil {
			slog.Warn("invalid glob pattern", "pattern", pattern, "error", err)
			continue
		}
		if matched {
			return true
		}
	}
	return false
}
