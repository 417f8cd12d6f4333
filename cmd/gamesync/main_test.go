package main

import (
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"tools.zach/dev/nowcord/internal/directory"
	"tools.zach/dev/nowcord/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testApps = []directory.App{
	{
		ID:   "590",
		Name: "Hades",
		Executables: []directory.Executable{
			{OS: "win32", Name: "hades.exe"},
		},
		ThirdPartySKUs: []directory.SKU{
			{Distributor: "steam", ID: "1145360"},
		},
	},
	{
		ID:   "712",
		Name: "Celeste",
		Executables: []directory.Executable{
			{OS: "win32", Name: "celeste.exe"},
		},
	},
}

func noSearch(string) string { return "" }

// ///////////////////////////////////////////////
// buildIndex / steamSKU
// ///////////////////////////////////////////////

func TestBuildIndex(t *testing.T) {
	idx := buildIndex(testApps)

	if idx.byName["hades"].ID != "590" {
		t.Errorf("byName miss: %+v", idx.byName["hades"])
	}
	if idx.bySteam["1145360"] != "590" {
		t.Errorf("bySteam = %q, want 590", idx.bySteam["1145360"])
	}
	if _, ok := idx.bySteam[""]; ok {
		t.Error("app without steam SKU indexed under empty id")
	}
}

// ///////////////////////////////////////////////
// enrich
// ///////////////////////////////////////////////

func TestEnrich_SteamSKUCrossReference(t *testing.T) {
	idx := buildIndex(testApps)
	// Record known only by its steam id, under a name the directory
	// does not list.
	rec := enrich(store.GameRecord{Name: "HADES (2020)", SteamAppID: "1145360"}, "HADES (2020)", idx, noSearch)

	if rec.DiscordAppID != "590" {
		t.Errorf("DiscordAppID = %q, want cross-referenced 590", rec.DiscordAppID)
	}
}

func TestEnrich_NameMatchFillsEverything(t *testing.T) {
	idx := buildIndex(testApps)
	rec := enrich(store.GameRecord{Name: "Hades"}, "Hades", idx, noSearch)

	if rec.DiscordAppID != "590" || rec.SteamAppID != "1145360" || rec.ExecutablePath != "hades.exe" {
		t.Errorf("record = %+v", rec)
	}
}

func TestEnrich_SearchFallbackForSteamID(t *testing.T) {
	idx := buildIndex(testApps)
	// Celeste has no steam SKU in the directory; the storefront search
	// supplies the id.
	rec := enrich(store.GameRecord{Name: "Celeste"}, "Celeste", idx, func(name string) string {
		if name == "Celeste" {
			return "504230"
		}
		return ""
	})

	if rec.SteamAppID != "504230" {
		t.Errorf("SteamAppID = %q, want searched 504230", rec.SteamAppID)
	}
}

func TestEnrich_NeverOverwrites(t *testing.T) {
	idx := buildIndex(testApps)
	in := store.GameRecord{
		Name:           "Hades",
		DiscordAppID:   "custom-id",
		SteamAppID:     "999",
		ExecutablePath: "custom.exe",
	}
	if got := enrich(in, "Hades", idx, noSearch); got != in {
		t.Errorf("enrich changed a complete record: %+v", got)
	}
}

// ///////////////////////////////////////////////
// sync
// ///////////////////////////////////////////////

func openStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "games.json"))
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestSync_EnrichesAndPersists(t *testing.T) {
	st := openStore(t)
	if err := st.Put(store.GameRecord{Name: "Hades"}); err != nil {
		t.Fatal(err)
	}

	updated, added := sync(st, testApps, noSearch, false, testLogger())

	if updated != 1 || added != 0 {
		t.Errorf("updated=%d added=%d, want 1/0", updated, added)
	}
	reopened, err := store.Open(st.Path())
	if err != nil {
		t.Fatal(err)
	}
	rec, _ := reopened.Lookup("Hades")
	if rec.DiscordAppID != "590" || rec.SteamAppID != "1145360" {
		t.Errorf("persisted record = %+v", rec)
	}
}

func TestSync_AddMissing(t *testing.T) {
	st := openStore(t)
	if err := st.Put(store.GameRecord{Name: "Hades", DiscordAppID: "590", SteamAppID: "1145360", ExecutablePath: "hades.exe"}); err != nil {
		t.Fatal(err)
	}

	_, added := sync(st, testApps, noSearch, true, testLogger())

	if added != 1 {
		t.Fatalf("added = %d, want just Celeste", added)
	}
	rec, ok := st.Lookup("Celeste")
	if !ok {
		t.Fatal("Celeste not added")
	}
	if rec.DiscordAppID != "712" || rec.ExecutablePath != "celeste.exe" || rec.Image != "steam" {
		t.Errorf("added record = %+v", rec)
	}
}

func TestSync_AddMissingOffByDefault(t *testing.T) {
	st := openStore(t)

	updated, added := sync(st, testApps, noSearch, false, testLogger())

	if updated != 0 || added != 0 {
		t.Errorf("updated=%d added=%d, want 0/0 on empty mapping", updated, added)
	}
	if st.Len() != 0 {
		t.Errorf("mapping grew to %d without -add-missing", st.Len())
	}
}
