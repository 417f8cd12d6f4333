package main

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"tools.zach/dev/nowcord/internal/config"
	"tools.zach/dev/nowcord/internal/discord"
	"tools.zach/dev/nowcord/internal/probe"
	"tools.zach/dev/nowcord/internal/store"
	"tools.zach/dev/nowcord/internal/storefront"
)

// ///////////////////////////////////////////////
// Fakes
// ///////////////////////////////////////////////

// fakeProbe replays a fixed sequence of probe results, repeating the last.
type fakeProbe struct {
	results []probe.Result
	i       int
}

func (f *fakeProbe) Poll() probe.Result {
	idx := f.i
	if idx >= len(f.results) {
		idx = len(f.results) - 1
	}
	f.i++
	return f.results[idx]
}

// fakeBridge records presence calls. Rebind counts a reopen only when the
// app id actually changes, mirroring the real client.
type fakeBridge struct {
	appID   string
	reopens int
	sets    []*discord.Activity
	clears  int
}

func (b *fakeBridge) Rebind(appID string) error {
	if appID != b.appID {
		b.appID = appID
		b.reopens++
	}
	return nil
}

func (b *fakeBridge) SetActivity(a *discord.Activity) error {
	b.sets = append(b.sets, a)
	return nil
}

func (b *fakeBridge) ClearActivity() error {
	b.clears++
	return nil
}

// fakePlaceholder logs lifecycle events in order so tests can check that
// old processes stop before new ones start.
type fakePlaceholder struct {
	events  []string
	running string
}

func (p *fakePlaceholder) EnsureRunning(path string) error {
	if p.running == path {
		return nil
	}
	if p.running != "" {
		p.events = append(p.events, "stop:"+p.running)
	}
	p.running = path
	p.events = append(p.events, "start:"+path)
	return nil
}

func (p *fakePlaceholder) Stop() {
	if p.running != "" {
		p.events = append(p.events, "stop:"+p.running)
		p.running = ""
	}
}

func title(s string) probe.Result { return probe.Result{Kind: probe.KindTitle, RawTitle: s} }

var (
	absent = probe.Result{Kind: probe.KindAbsent}
	idle   = probe.Result{Kind: probe.KindIdle}
)

// loopFixture wires a Loop over fakes and an in-memory resolver stub.
type loopFixture struct {
	loop        *Loop
	bridge      *fakeBridge
	placeholder *fakePlaceholder
	resolved    map[string]store.GameRecord
	created     int
}

func newLoopFixture(t *testing.T, results ...probe.Result) *loopFixture {
	t.Helper()
	f := &loopFixture{
		bridge:      &fakeBridge{},
		placeholder: &fakePlaceholder{},
		resolved:    map[string]store.GameRecord{},
	}
	cfg := config.DefaultConfig()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.loop = NewLoop(cfg, &fakeProbe{results: results}, f.bridge, f.placeholder, log)
	f.loop.Resolve = func(name string) (store.GameRecord, bool) {
		if rec, ok := f.resolved[name]; ok {
			return rec, false
		}
		f.created++
		rec := store.GameRecord{Name: name, Image: "steam"}
		f.resolved[name] = rec
		return rec, true
	}
	f.loop.Lookup = func(name string) (store.GameRecord, bool) {
		rec, ok := f.resolved[name]
		return rec, ok
	}
	return f
}

func (f *loopFixture) know(rec store.GameRecord) {
	f.resolved[rec.Name] = rec
}

// ///////////////////////////////////////////////
// State Transitions
// ///////////////////////////////////////////////

func TestTick_DetachedStaysQuiet(t *testing.T) {
	f := newLoopFixture(t, absent)

	f.loop.Tick()
	f.loop.Tick()

	if len(f.bridge.sets) != 0 || f.bridge.clears != 0 {
		t.Errorf("detached loop touched presence: sets=%d clears=%d", len(f.bridge.sets), f.bridge.clears)
	}
	if len(f.placeholder.events) != 0 {
		t.Errorf("detached loop touched placeholder: %v", f.placeholder.events)
	}
}

func TestTick_IdleShowsBrowsing(t *testing.T) {
	f := newLoopFixture(t, idle)

	f.loop.Tick()

	if len(f.bridge.sets) != 1 {
		t.Fatalf("sets = %d, want 1", len(f.bridge.sets))
	}
	if f.bridge.sets[0].Details != browsingDetails {
		t.Errorf("Details = %q, want browsing line", f.bridge.sets[0].Details)
	}
	if f.bridge.appID != config.DefaultDiscordAppID {
		t.Errorf("idle bound to app %q, want default", f.bridge.appID)
	}
}

func TestTick_PlayingPublishesGame(t *testing.T) {
	f := newLoopFixture(t, title("Hades en GeForce NOW"))
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590", ExecutablePath: "hades.exe", Image: "steam"})

	f.loop.Tick()

	if f.bridge.appID != "590" {
		t.Errorf("bound app = %q, want 590", f.bridge.appID)
	}
	if len(f.bridge.sets) != 1 {
		t.Fatalf("sets = %d, want 1", len(f.bridge.sets))
	}
	a := f.bridge.sets[0]
	if a.Details != "Playing Hades" {
		t.Errorf("Details = %q", a.Details)
	}
	if a.Assets == nil || a.Assets.LargeImage != "steam" || a.Assets.LargeText != "Hades" {
		t.Errorf("Assets = %+v", a.Assets)
	}
	if a.Timestamps == nil || a.Timestamps.Start == 0 {
		t.Error("missing start timestamp")
	}
	if got := f.placeholder.events; len(got) != 1 || got[0] != "start:hades.exe" {
		t.Errorf("placeholder events = %v", got)
	}
}

func TestTick_SameGameRepushesWithoutRestart(t *testing.T) {
	f := newLoopFixture(t, title("Hades"), title("Hades"))
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590", ExecutablePath: "hades.exe"})

	f.loop.Tick()
	f.loop.Tick()

	// Status text can drift, so every tick pushes presence again.
	if len(f.bridge.sets) != 2 {
		t.Errorf("sets = %d, want 2", len(f.bridge.sets))
	}
	if f.bridge.reopens != 1 {
		t.Errorf("reopens = %d, want 1", f.bridge.reopens)
	}
	if len(f.placeholder.events) != 1 {
		t.Errorf("placeholder restarted: %v", f.placeholder.events)
	}
}

func TestTick_GameChangeStopsOldBeforeNew(t *testing.T) {
	f := newLoopFixture(t, title("Hades"), title("Celeste"))
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590", ExecutablePath: "hades.exe"})
	f.know(store.GameRecord{Name: "Celeste", DiscordAppID: "712", ExecutablePath: "celeste.exe"})

	f.loop.Tick()
	f.loop.Tick()

	want := []string{"start:hades.exe", "stop:hades.exe", "start:celeste.exe"}
	if strings.Join(f.placeholder.events, ",") != strings.Join(want, ",") {
		t.Errorf("placeholder events = %v, want %v", f.placeholder.events, want)
	}
	if f.bridge.reopens != 2 {
		t.Errorf("reopens = %d, want 2 (one per distinct app id)", f.bridge.reopens)
	}
}

func TestTick_SameAppIDDifferentNameNoReopen(t *testing.T) {
	f := newLoopFixture(t, title("Hades"), title("Hades II"))
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590"})
	f.know(store.GameRecord{Name: "Hades II", DiscordAppID: "590"})

	f.loop.Tick()
	f.loop.Tick()

	if f.bridge.reopens != 1 {
		t.Errorf("reopens = %d, want 1 (same app id must not reopen)", f.bridge.reopens)
	}
}

func TestTick_AbsentAfterPlayingCleansUp(t *testing.T) {
	f := newLoopFixture(t, title("Hades"), absent)
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590", ExecutablePath: "hades.exe"})

	f.loop.Tick()
	f.loop.Tick()

	if f.bridge.clears != 1 {
		t.Errorf("clears = %d, want 1", f.bridge.clears)
	}
	if f.placeholder.running != "" {
		t.Errorf("placeholder still running %q after detach", f.placeholder.running)
	}
}

func TestTick_RecordWithoutExecutableStopsPlaceholder(t *testing.T) {
	f := newLoopFixture(t, title("Hades"), title("Obscure Indie"))
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590", ExecutablePath: "hades.exe"})
	f.know(store.GameRecord{Name: "Obscure Indie"})

	f.loop.Tick()
	f.loop.Tick()

	if f.placeholder.running != "" {
		t.Errorf("placeholder running %q for a game with no executable", f.placeholder.running)
	}
}

func TestTick_IgnoredTitleTreatedAsIdle(t *testing.T) {
	f := newLoopFixture(t, title("Secret Game"))
	f.loop.Cfg.Detection.Ignore = []string{"secret*"}

	f.loop.Tick()

	if f.created != 0 {
		t.Error("ignored title must not create a record")
	}
	if len(f.bridge.sets) != 1 || f.bridge.sets[0].Details != browsingDetails {
		t.Errorf("ignored title should fall back to browsing presence, sets = %+v", f.bridge.sets)
	}
}

// ///////////////////////////////////////////////
// Forced Override
// ///////////////////////////////////////////////

func TestTick_ForcedOverridesProbeTitle(t *testing.T) {
	f := newLoopFixture(t, title("Hades"))
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590"})
	f.know(store.GameRecord{Name: "Celeste", DiscordAppID: "712"})

	f.loop.SetForced("Celeste")
	f.loop.Tick()

	if f.bridge.appID != "712" {
		t.Errorf("bound app = %q, want forced Celeste", f.bridge.appID)
	}
}

func TestTick_ForcedAppliesWhileIdle(t *testing.T) {
	f := newLoopFixture(t, idle)
	f.know(store.GameRecord{Name: "Celeste", DiscordAppID: "712"})

	f.loop.SetForced("Celeste")
	f.loop.Tick()

	if f.bridge.appID != "712" {
		t.Errorf("bound app = %q, want forced Celeste", f.bridge.appID)
	}
}

func TestTick_ForcedUnknownGameIgnored(t *testing.T) {
	f := newLoopFixture(t, title("Hades"))
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590"})

	f.loop.SetForced("No Such Game")
	f.loop.Tick()

	if f.created != 0 {
		t.Errorf("created = %d, force must not create mapping entries", f.created)
	}
	if f.bridge.appID != "590" {
		t.Errorf("bound app = %q, want probed Hades when the force names no entry", f.bridge.appID)
	}
}

func TestTick_DetachDropsForce(t *testing.T) {
	f := newLoopFixture(t, title("Hades"), absent, title("Hades"))
	f.know(store.GameRecord{Name: "Hades", DiscordAppID: "590"})
	f.know(store.GameRecord{Name: "Celeste", DiscordAppID: "712"})

	f.loop.SetForced("Celeste")
	f.loop.Tick() // forced Celeste
	f.loop.Tick() // absent: drops force
	f.loop.Tick() // back to probed Hades

	if f.bridge.appID != "590" {
		t.Errorf("bound app = %q, want probed Hades after force dropped", f.bridge.appID)
	}
}

// ///////////////////////////////////////////////
// Status Text
// ///////////////////////////////////////////////

func TestStatusLines_ScrapedTextSplit(t *testing.T) {
	f := newLoopFixture(t, title("Hades"))
	f.know(store.GameRecord{Name: "Hades", SteamAppID: "1145360", DiscordAppID: "590"})
	f.loop.Status = func(rec store.GameRecord) (storefront.Presence, error) {
		return storefront.Presence{RichText: "In Tartarus | Heat 16"}, nil
	}

	f.loop.Tick()

	a := f.bridge.sets[0]
	if a.Details != "In Tartarus" || a.State != "Heat 16" {
		t.Errorf("details/state = %q/%q", a.Details, a.State)
	}
}

func TestStatusLines_GroupSizeOverridesState(t *testing.T) {
	f := newLoopFixture(t, title("Deep Rock Galactic"))
	f.know(store.GameRecord{Name: "Deep Rock Galactic", SteamAppID: "548430", DiscordAppID: "1"})
	f.loop.Status = func(rec store.GameRecord) (storefront.Presence, error) {
		return storefront.Presence{RichText: "Mining | Solo dive", GroupSize: 4}, nil
	}

	f.loop.Tick()

	a := f.bridge.sets[0]
	if a.State != "In a group (4 players)" {
		t.Errorf("State = %q, want group text", a.State)
	}
}

func TestStatusLines_ScrapeFailureFallsBack(t *testing.T) {
	f := newLoopFixture(t, title("Hades"))
	f.know(store.GameRecord{Name: "Hades", SteamAppID: "1145360", DiscordAppID: "590", StateText: "Escaping the Underworld"})
	f.loop.Status = func(rec store.GameRecord) (storefront.Presence, error) {
		return storefront.Presence{}, errors.New("session expired")
	}

	f.loop.Tick()

	if f.bridge.sets[0].Details != "Escaping the Underworld" {
		t.Errorf("Details = %q, want record state_text", f.bridge.sets[0].Details)
	}
}

func TestStatusLines_FeedUsedWhenNoSteamID(t *testing.T) {
	f := newLoopFixture(t, title("Fortnite"))
	f.know(store.GameRecord{Name: "Fortnite", DiscordAppID: "432980957394370572"})
	f.loop.FeedText = func() string { return "Battle Royale - Squads" }

	f.loop.Tick()

	a := f.bridge.sets[0]
	if a.Details != "Battle Royale" || a.State != "Squads" {
		t.Errorf("details/state = %q/%q", a.Details, a.State)
	}
}

// ///////////////////////////////////////////////
// End-to-End Scenario
// ///////////////////////////////////////////////

// Five ticks: absent, absent, playing Hades, still Hades, absent.
func TestLoop_FiveTickScenario(t *testing.T) {
	f := newLoopFixture(t,
		absent,
		absent,
		title("Hades en GeForce NOW"),
		title("Hades en GeForce NOW"),
		absent,
	)
	// First sighting resolves to a fully-known identity, as if the
	// directory match completed within the tick.
	f.loop.Resolve = func(name string) (store.GameRecord, bool) {
		if rec, ok := f.resolved[name]; ok {
			return rec, false
		}
		f.created++
		rec := store.GameRecord{Name: name, DiscordAppID: "590", ExecutablePath: "hades.exe", Image: "steam"}
		f.resolved[name] = rec
		return rec, true
	}

	f.loop.Tick()
	f.loop.Tick()
	if len(f.bridge.sets) != 0 || f.bridge.clears != 0 {
		t.Fatalf("ticks 1-2 touched presence: sets=%d clears=%d", len(f.bridge.sets), f.bridge.clears)
	}

	f.loop.Tick()
	if f.created != 1 {
		t.Errorf("tick 3 created %d records, want 1", f.created)
	}
	if f.bridge.reopens != 1 {
		t.Errorf("tick 3 reopens = %d, want 1", f.bridge.reopens)
	}
	if len(f.bridge.sets) != 1 {
		t.Errorf("tick 3 sets = %d, want 1", len(f.bridge.sets))
	}
	if got := f.placeholder.events; len(got) != 1 || got[0] != "start:hades.exe" {
		t.Errorf("tick 3 placeholder events = %v, want one launch", got)
	}

	f.loop.Tick()
	if f.created != 1 {
		t.Errorf("tick 4 created another record, total %d", f.created)
	}
	if f.bridge.reopens != 1 {
		t.Errorf("tick 4 reopens = %d, want still 1", f.bridge.reopens)
	}
	if len(f.bridge.sets) != 2 {
		t.Errorf("tick 4 sets = %d, want 2 (per-tick re-push)", len(f.bridge.sets))
	}

	f.loop.Tick()
	if f.bridge.clears != 1 {
		t.Errorf("tick 5 clears = %d, want 1", f.bridge.clears)
	}
	if f.placeholder.running != "" {
		t.Errorf("tick 5 left placeholder %q running", f.placeholder.running)
	}
}
