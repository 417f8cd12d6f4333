package main

import (
	"log/slog"
	"sync"
	"time"

	"tools.zach/dev/nowcord/internal/config"
	"tools.zach/dev/nowcord/internal/discord"
	"tools.zach/dev/nowcord/internal/probe"
	"tools.zach/dev/nowcord/internal/store"
	"tools.zach/dev/nowcord/internal/storefront"
)

// ///////////////////////////////////////////////
// Loop Dependencies
// ///////////////////////////////////////////////

// Prober reports what the streaming client is doing right now.
type Prober interface {
	Poll() probe.Result
}

// Bridge is the presence session. Rebind reopens it only when the target
// app id differs from the bound one.
type Bridge interface {
	Rebind(appID string) error
	SetActivity(a *discord.Activity) error
	ClearActivity() error
}

// Placeholder manages the synthetic game process.
type Placeholder interface {
	EnsureRunning(executablePath string) error
	Stop()
}

// ///////////////////////////////////////////////
// Loop
// ///////////////////////////////////////////////

// phase is the loop's coarse state between ticks.
type phase int

const (
	phaseDetached phase = iota
	phaseIdle
	phasePlaying
)

// browsingDetails is the presence line shown while the client is open with
// no game running.
const browsingDetails = "Browsing GeForce NOW"

// Loop is the per-tick reconciliation driver: probe, resolve, then make
// presence and the synthetic process match what the user is doing. It is
// single-threaded; everything concurrent reaches it through the store or
// the forced-override setter.
type Loop struct {
	Cfg         *config.Config
	Probe       Prober
	Bridge      Bridge
	Placeholder Placeholder
	// Resolve maps a clean title to its game record.
	Resolve func(title string) (store.GameRecord, bool)
	// Lookup reads a record without creating one; the forced-override path
	// only honors games that already have a mapping entry.
	Lookup func(name string) (store.GameRecord, bool)
	// Status fetches the scraped rich-presence status for a record with a
	// storefront id. Nil disables scraping.
	Status func(rec store.GameRecord) (storefront.Presence, error)
	// FeedText fetches the optional local presence feed line. Nil when the
	// feed is disabled.
	FeedText func() string
	// DefaultAppID is the presence app id used when a record has none.
	DefaultAppID string
	Log          *slog.Logger

	phase   phase
	current store.GameRecord
	started time.Time

	forceMu    sync.Mutex
	forcedName string

	now func() time.Time
}

// NewLoop wires a Loop over its collaborators, starting Detached.
func NewLoop(cfg *config.Config, prober Prober, bridge Bridge, placeholder Placeholder, log *slog.Logger) *Loop {
	return &Loop{
		Cfg:          cfg,
		Probe:        prober,
		Bridge:       bridge,
		Placeholder:  placeholder,
		DefaultAppID: cfg.Discord.AppID,
		Log:          log,
		now:          time.Now,
	}
}

// SetForced pins the identity for name until cleared ("" clears). While
// forced, probe titles are ignored but probe Absent still detaches.
func (l *Loop) SetForced(name string) {
	l.forceMu.Lock()
	defer l.forceMu.Unlock()
	if l.forcedName == name {
		return
	}
	l.forcedName = name
	if name == "" {
		l.Log.Info("forced game cleared")
	} else {
		l.Log.Info("forced game set", "game", name)
	}
}

func (l *Loop) forced() string {
	l.forceMu.Lock()
	defer l.forceMu.Unlock()
	return l.forcedName
}

// Tick runs one reconciliation pass. Errors inside a tick are logged and
// absorbed; the loop always reaches the next tick.
func (l *Loop) Tick() {
	res := l.Probe.Poll()

	if res.Kind == probe.KindAbsent {
		l.detach()
		return
	}

	if forced := l.forced(); forced != "" {
		if rec, ok := l.Lookup(forced); ok {
			l.play(rec)
			return
		}
		l.Log.Warn("forced game has no mapping entry, ignoring", "game", forced)
	}

	if res.Kind == probe.KindIdle {
		l.idle()
		return
	}

	title := probe.CleanTitle(res.RawTitle)
	if l.Cfg.IsIgnoredTitle(title) {
		l.Log.Debug("title ignored", "title", title)
		l.idle()
		return
	}

	rec, created := l.Resolve(title)
	if created {
		l.Log.Info("new game detected", "game", rec.Name, "steam_appid", rec.SteamAppID)
	}
	l.play(rec)
}

// Shutdown runs the detach cleanup once, for the signal path.
func (l *Loop) Shutdown() {
	l.Log.Info("shutting down, clearing presence")
	l.phase = phasePlaying // force the cleanup even if already detached
	l.detach()
}

// detach clears presence, stops the synthetic process, and drops any
// forced override. Entering Detached from Detached is a no-op.
func (l *Loop) detach() {
	if l.phase == phaseDetached {
		return
	}
	l.phase = phaseDetached
	l.current = store.GameRecord{}

	if err := l.Bridge.ClearActivity(); err != nil {
		l.Log.Warn("failed to clear presence", "error", err)
	}
	l.Placeholder.Stop()
	l.SetForced("")
	l.Log.Info("client detached")
}

// idle publishes the browsing placeholder under the default app identity.
func (l *Loop) idle() {
	if l.phase == phasePlaying {
		l.Placeholder.Stop()
	}
	if l.phase != phaseIdle {
		l.phase = phaseIdle
		l.current = store.GameRecord{}
		l.started = l.now()
		l.Log.Info("client idle")
	}

	if err := l.Bridge.Rebind(l.DefaultAppID); err != nil {
		l.Log.Warn("presence rebind failed", "error", err)
		return
	}
	activity := &discord.Activity{
		Details:    browsingDetails,
		Timestamps: &discord.Timestamps{Start: l.started.Unix()},
	}
	if err := l.Bridge.SetActivity(activity); err != nil {
		l.Log.Warn("failed to set presence", "error", err)
	}
}

// sameGame reports whether two records are the same playing identity.
func sameGame(a, b store.GameRecord) bool {
	return a.Name == b.Name &&
		a.DiscordAppID == b.DiscordAppID &&
		a.ExecutablePath == b.ExecutablePath
}

// play makes rec the active game: synthetic process first, then the
// presence session, then the per-tick presence push.
func (l *Loop) play(rec store.GameRecord) {
	changed := l.phase != phasePlaying || !sameGame(l.current, rec)
	if changed {
		// Stop before start so two placeholders never overlap, then
		// reset the elapsed timer for the new game.
		if rec.ExecutablePath != "" {
			if err := l.Placeholder.EnsureRunning(rec.ExecutablePath); err != nil {
				l.Log.Warn("placeholder failed", "game", rec.Name, "error", err)
			}
		} else {
			l.Placeholder.Stop()
		}
		l.started = l.now()
		l.Log.Info("game started", "game", rec.Name, "app_id", rec.DiscordAppID)
	}
	l.phase = phasePlaying
	l.current = rec

	appID := rec.DiscordAppID
	if appID == "" {
		appID = l.DefaultAppID
	}
	if err := l.Bridge.Rebind(appID); err != nil {
		l.Log.Warn("presence rebind failed", "game", rec.Name, "error", err)
		return
	}

	if err := l.Bridge.SetActivity(l.buildActivity(rec)); err != nil {
		l.Log.Warn("failed to set presence", "game", rec.Name, "error", err)
	}
}

// buildActivity derives the presence payload for rec, preferring live
// status text over the record's fixed fallback.
func (l *Loop) buildActivity(rec store.GameRecord) *discord.Activity {
	details, state := l.statusLines(rec)

	activity := &discord.Activity{
		Details:    details,
		State:      state,
		Timestamps: &discord.Timestamps{Start: l.started.Unix()},
	}
	if rec.Image != "" || rec.IconKey != "" {
		activity.Assets = &discord.Assets{
			LargeImage: rec.Image,
			LargeText:  rec.Name,
			SmallImage: rec.IconKey,
		}
	}
	return activity
}

// statusLines resolves the details/state pair: scraped storefront status
// first, then the local feed, then the record's own text.
func (l *Loop) statusLines(rec store.GameRecord) (details, state string) {
	if l.Status != nil && rec.SteamAppID != "" {
		presence, err := l.Status(rec)
		switch {
		case err != nil:
			l.Log.Debug("status scrape failed", "game", rec.Name, "error", err)
		case presence.RichText != "":
			details, state = storefront.SplitStatus(presence.RichText)
			if group := storefront.GroupState(presence.GroupSize); group != "" {
				state = group
			}
			return details, state
		case presence.GroupSize > 0:
			return "Playing " + rec.Name, storefront.GroupState(presence.GroupSize)
		}
	}

	if l.FeedText != nil {
		if text := l.FeedText(); text != "" {
			return storefront.SplitStatus(text)
		}
	}

	if rec.StateText != "" {
		return rec.StateText, ""
	}
	return "Playing " + rec.Name, ""
}
