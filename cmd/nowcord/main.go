// Package main implements the nowcord daemon, which watches the GeForce NOW
// streaming client and publishes Discord Rich Presence for the game being
// streamed.
package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	rootpkg "tools.zach/dev/nowcord"
	"tools.zach/dev/nowcord/internal/config"
	"tools.zach/dev/nowcord/internal/directory"
	"tools.zach/dev/nowcord/internal/discord"
	"tools.zach/dev/nowcord/internal/fakeproc"
	"tools.zach/dev/nowcord/internal/feed"
	"tools.zach/dev/nowcord/internal/keepalive"
	"tools.zach/dev/nowcord/internal/launcher"
	"tools.zach/dev/nowcord/internal/logger"
	"tools.zach/dev/nowcord/internal/paths"
	"tools.zach/dev/nowcord/internal/probe"
	"tools.zach/dev/nowcord/internal/resolver"
	"tools.zach/dev/nowcord/internal/store"
	"tools.zach/dev/nowcord/internal/storefront"
	"tools.zach/dev/nowcord/internal/update"
)

// ///////////////////////////////////////////////
// Version
// ///////////////////////////////////////////////

// version is set at build time via ldflags:
//   - goreleaser: -X main.version={{.Version}}  -> "0.1.0"
//   - make build: -X main.version=$(VERSION)    -> "0.0.0-dev+05ffee5"
//
// When ldflags are not set (bare go build), resolveVersion reads the VCS info
// that Go embeds automatically, so dev builds get a useful version string
// without needing git at runtime.
var version = "dev"

// resolveVersion returns the build version string. If [version] was set via
// ldflags at build time it is returned as-is; otherwise VCS revision and dirty
// state embedded by the Go toolchain are used to construct a "dev+<hash>" tag.
func resolveVersion() string {
	if version != "dev" {
		return version
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return version
	}
	var revision string
	var dirty bool
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			revision = s.Value
		case "vcs.modified":
			dirty = s.Value == "true"
		}
	}
	if revision == "" {
		return version
	}
	hash := revision[:min(7, len(revision))]
	if dirty {
		return "dev+" + hash + ".dirty"
	}
	return "dev+" + hash
}

// ///////////////////////////////////////////////
// PID Management
// ///////////////////////////////////////////////

// pidToken generates a random 16-character hex token used to prove ownership
// of the PID file, so [removePID] only deletes the file if this instance wrote it.
func pidToken() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// writePID creates or opens the PID file at [DataPaths.PID], acquires an
// advisory file lock, and writes "PID:TOKEN" content. The returned file handle
// must be kept open for the lifetime of the daemon to hold the lock; pass it to
// [removePID] on shutdown.
func writePID(paths DataPaths, token string) (*os.File, error) {
	f, err := os.OpenFile(paths.PID(), os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open PID file: %w", err)
	}
	if err := lockFile(f); err != nil {
		f.Close()
		return nil, fmt.Errorf("lock PID file: %w", err)
	}
	if err := f.Truncate(0); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("truncate PID file: %w", err)
	}
	content := fmt.Sprintf("%d:%s", os.Getpid(), token)
	if _, err := f.WriteString(content); err != nil {
		_ = unlockFile(f)
		f.Close()
		return nil, fmt.Errorf("write PID file: %w", err)
	}
	return f, nil
}

// removePID releases the advisory lock, closes the file handle, and removes the
// PID file only if the stored token matches, preventing accidental removal of a
// file owned by a different daemon instance.
func removePID(paths DataPaths, token string, f *os.File) {
	if f != nil {
		_ = unlockFile(f)
		f.Close()
	}
	data, err := os.ReadFile(paths.PID())
	if err != nil {
		return
	}
	parts := strings.SplitN(string(data), ":", 2)
	if len(parts) == 2 && parts[1] == token {
		os.Remove(paths.PID())
	}
}

// checkStalePID checks whether another daemon instance is running. It attempts
// to acquire the advisory lock on the PID file; if the lock fails, another
// instance holds it and this one aborts. If the lock succeeds, any previous
// instance is dead and the stale file is cleaned up.
func checkStalePID(paths DataPaths) (alive bool, pid int) {
	f, err := os.OpenFile(paths.PID(), os.O_RDWR, 0o600)
	if err != nil {
		return false, 0
	}

	if lockErr := lockFile(f); lockErr != nil {
		data, _ := os.ReadFile(paths.PID())
		f.Close()
		parts := strings.SplitN(string(data), ":", 2)
		if len(parts) >= 1 {
			if p, convErr := strconv.Atoi(parts[0]); convErr == nil {
				return true, p
			}
		}
		return true, 0
	}

	// Lock acquired -- previous instance is dead. Clean up stale file.
	_ = unlockFile(f)
	f.Close()
	os.Remove(paths.PID())
	return false, 0
}

// ///////////////////////////////////////////////
// Default Data Directory
// ///////////////////////////////////////////////

// defaultDataDir returns the platform default directory for nowcord data,
// typically ~/.nowcord. Falls back to ./.nowcord if the home directory
// cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

// ///////////////////////////////////////////////
// Main
// ///////////////////////////////////////////////

func main() {
	// A placeholder child is this same binary re-executed; it must idle,
	// not start a second daemon.
	if os.Getenv(fakeproc.IdleEnv) != "" {
		fakeproc.Idle()
	}

	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory for config, state, and logs")
	noLaunchGeForce := flag.Bool("no-launch-geforce", false, "Do not start GeForce NOW when it is not running")
	noLaunchDiscord := flag.Bool("no-launch-discord", false, "Do not start Discord when it is not running")
	noKeepalive := flag.Bool("no-keepalive", false, "Disable the session keep-alive input jitter")
	verbose := flag.Bool("verbose", false, "Log to stderr as well as the log file, at debug level")
	flag.Parse()

	dataPaths := DataPaths{Root: *dataDir}

	if err := os.MkdirAll(dataPaths.Root, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: create data dir: %v\n", err)
		os.Exit(1)
	}

	if alive, pid := checkStalePID(dataPaths); alive {
		fmt.Fprintf(os.Stderr, "daemon already running (pid %d)\n", pid)
		os.Exit(1)
	}

	if _, err := os.Stat(dataPaths.Config()); os.IsNotExist(err) {
		if writeErr := os.WriteFile(dataPaths.Config(), rootpkg.DefaultConfigTOML, 0o644); writeErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to write default config: %v\n", writeErr)
		}
	}

	cfg, err := config.Load(dataPaths.Root)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: load config: %v\n", err)
		os.Exit(1)
	}

	logLevel := logger.ParseLevel(cfg.Log.Level)
	if *verbose && logLevel > slog.LevelDebug {
		logLevel = slog.LevelDebug
	}
	log, logCloser, err := logger.NewLogger(dataPaths.Log(), logLevel, cfg.Log.MaxSizeMB, *verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: init logger: %v\n", err)
		os.Exit(1)
	}
	defer logCloser.Close()
	slog.SetDefault(log)

	ver := resolveVersion()
	slog.Info("nowcord starting", "version", ver, "data_dir", dataPaths.Root)

	if cfg.Behavior.CheckUpdates {
		go func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("update check panic", "error", r)
				}
			}()
			update.Check(ver)
		}()
	}

	token := pidToken()
	pidFile, err := writePID(dataPaths, token)
	if err != nil {
		slog.Error("failed to write PID file", "error", err)
		os.Exit(1)
	}
	defer removePID(dataPaths, token, pidFile)

	env, _ := config.LoadEnv(dataPaths.Env())
	gamesPath := config.ResolveGamesPath(dataPaths.Root, env)
	st, err := store.Open(gamesPath)
	if err != nil {
		slog.Warn("games mapping unreadable, starting empty", "path", gamesPath, "error", err)
	}
	slog.Info("games mapping loaded", "path", gamesPath, "games", st.Len())

	dir := directory.New(cfg.Directory.URL, dataPaths.DirectoryCache(), time.Duration(cfg.Directory.CacheTTLSeconds)*time.Second)
	searcher := storefront.NewSearcher(cfg.Storefront.SearchURL)
	res := resolver.New(st, searcher, dir, log)
	res.NoiseFloor = cfg.Directory.NoiseFloor
	res.AutoApplyThreshold = cfg.Directory.AutoApplyThreshold
	res.MaxCandidates = cfg.Directory.MaxCandidates
	res.ConfirmTimeout = time.Duration(cfg.Directory.ConfirmTimeoutSeconds) * time.Second

	if cfg.Behavior.LaunchGeForce && !*noLaunchGeForce {
		launcher.EnsureGeForce(log)
	}
	if cfg.Behavior.LaunchDiscord && !*noLaunchDiscord {
		launcher.EnsureDiscord(log)
	}

	client := discord.NewClient(cfg.Discord.AppID)
	reconnectInterval := time.Duration(cfg.Behavior.ReconnectIntervalSeconds) * time.Second
	if err := connectWithRetry(client, reconnectInterval); err != nil {
		slog.Error("failed to connect to Discord", "error", err)
		os.Exit(1)
	}
	defer client.Close()
	slog.Info("connected to Discord", "app_id", cfg.Discord.AppID)

	loop := NewLoop(cfg, probe.New(cfg.IsIdleTitle), client, fakeproc.New(log), log)
	loop.Resolve = res.Resolve
	loop.Lookup = st.Lookup
	if cfg.Storefront.RichPresenceURL != "" {
		loop.Status = func(rec store.GameRecord) (storefront.Presence, error) {
			scraper := storefront.NewScraper(richPresenceURL(cfg.Storefront.RichPresenceURL, rec.SteamAppID), cfg.Storefront.Cookie)
			return scraper.Scrape()
		}
	}
	if cfg.Feed.Enabled {
		feedClient := feed.New(cfg.Feed.Port)
		loop.FeedText = feedClient.RichText
	}

	stopForce := watchForce(dataPaths.Force(), loop.SetForced, log)
	defer stopForce()

	if cfg.Behavior.Keepalive && !*noKeepalive {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		task := keepalive.New(time.Duration(cfg.Behavior.KeepaliveIntervalMinutes)*time.Minute, log)
		go task.Run(ctx)
	}

	run(loop, client, cfg, reconnectInterval)
	loop.Shutdown()
}

// richPresenceURL appends the storefront app id to the rich-presence test
// page URL.
func richPresenceURL(base, appID string) string {
	if appID == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + "appid=" + appID
}

// ///////////////////////////////////////////////
// Connect with Retry
// ///////////////////////////////////////////////

// presenceConn is the subset of the IPC client the event loop needs for
// reconnect handling.
type presenceConn interface {
	Connect() error
	Connected() bool
}

// connectWithRetry attempts to connect the client up to 10 times, sleeping
// the given interval between failures. Returns nil on success or an error
// if all attempts are exhausted.
func connectWithRetry(client presenceConn, interval time.Duration) error {
	const maxAttempts = 10

	for i := 0; i < maxAttempts; i++ {
		err := client.Connect()
		if err == nil {
			return nil
		}
		slog.Warn("Discord connect attempt failed", "attempt", i+1, "error", err)
		if i < maxAttempts-1 {
			time.Sleep(interval)
		}
	}
	return fmt.Errorf("failed to connect after %d attempts", maxAttempts)
}

// ///////////////////////////////////////////////
// Event Loop
// ///////////////////////////////////////////////

// run drives the loop: one tick immediately, then one per poll interval,
// until a shutdown signal arrives. A lost IPC connection is re-established
// between ticks with the same bounded retry as startup; exhausting the
// retries only skips that cycle.
func run(loop *Loop, client presenceConn, cfg *config.Config, reconnectInterval time.Duration) {
	pollInterval := time.Duration(cfg.Behavior.PollIntervalSeconds) * time.Second
	pollTicker := time.NewTicker(pollInterval)
	defer pollTicker.Stop()

	sigCh := signalChannel()

	loop.Tick()
	for {
		select {
		case <-sigCh:
			slog.Info("received shutdown signal")
			return
		case <-pollTicker.C:
			pollOnce(loop, client, reconnectInterval)
		}
	}
}

// pollOnce reconnects the client if needed, then runs one loop tick. When
// the reconnect attempts are exhausted the tick is skipped and the next
// poll cycle tries again; a user restarting Discord mid-run must not take
// the daemon down with it.
func pollOnce(loop *Loop, client presenceConn, reconnectInterval time.Duration) {
	if !client.Connected() {
		slog.Warn("Discord disconnected, reconnecting")
		if err := connectWithRetry(client, reconnectInterval); err != nil {
			slog.Warn("reconnect failed, will retry next cycle", "error", err)
			return
		}
	}
	loop.Tick()
}
