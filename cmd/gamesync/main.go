// Command gamesync enriches the games mapping offline: it cross-references
// the Discord detectable-applications directory (including third-party
// storefront SKUs) and the Steam name search to fill in missing identifiers,
// and can add directory entries the mapping has never seen.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"tools.zach/dev/nowcord/internal/config"
	"tools.zach/dev/nowcord/internal/directory"
	"tools.zach/dev/nowcord/internal/paths"
	"tools.zach/dev/nowcord/internal/store"
	"tools.zach/dev/nowcord/internal/storefront"
)

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", paths.DataDirRel)
	}
	return filepath.Join(home, paths.DataDirRel)
}

func main() {
	dataDir := flag.String("data-dir", defaultDataDir(), "Data directory holding config and the games mapping")
	gamesPath := flag.String("games", "", "Games mapping path (default: resolved from the data directory)")
	addMissing := flag.Bool("add-missing", false, "Also add every directory entry the mapping does not have yet")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*dataDir)
	if err != nil {
		log.Warn("config unreadable, using defaults", "error", err)
		cfg = config.DefaultConfig()
	}

	path := *gamesPath
	if path == "" {
		env, _ := config.LoadEnv(filepath.Join(*dataDir, paths.EnvFile))
		path = config.ResolveGamesPath(*dataDir, env)
	}
	st, err := store.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: open games mapping %s: %v\n", path, err)
		os.Exit(1)
	}
	log.Info("games mapping loaded", "path", path, "games", st.Len())

	dir := directory.New(cfg.Directory.URL, filepath.Join(*dataDir, paths.DirectoryCacheFile), time.Duration(cfg.Directory.CacheTTLSeconds)*time.Second)
	apps, err := dir.Apps()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: fetch application directory: %v\n", err)
		os.Exit(1)
	}
	log.Info("application directory loaded", "apps", len(apps))

	searcher := storefront.NewSearcher(cfg.Storefront.SearchURL)
	search := func(name string) string {
		id, searchErr := searcher.AppID(name)
		if searchErr != nil {
			log.Warn("steam search failed", "game", name, "error", searchErr)
			return ""
		}
		return id
	}

	updated, added := sync(st, apps, search, *addMissing, log)
	log.Info("sync complete", "updated", updated, "added", added)
}

// index is the directory keyed three ways for cross-referencing.
type index struct {
	byName  map[string]directory.App
	bySteam map[string]string // steam app id -> discord app id
}

// buildIndex indexes apps by lowercase name and by steam SKU id.
func buildIndex(apps []directory.App) index {
	idx := index{
		byName:  make(map[string]directory.App, len(apps)),
		bySteam: make(map[string]string),
	}
	for _, app := range apps {
		idx.byName[strings.ToLower(app.Name)] = app
		if sid := steamSKU(app); sid != "" {
			idx.bySteam[sid] = app.ID
		}
	}
	return idx
}

// steamSKU returns the app's first Steam storefront id, or "".
func steamSKU(app directory.App) string {
	for _, sku := range app.ThirdPartySKUs {
		if sku.Distributor == "steam" && sku.ID != "" {
			return sku.ID
		}
	}
	return ""
}

// sync fills absent identifiers on every existing record and, when
// addMissing is set, adds directory entries the mapping lacks. Existing
// values are never overwritten. Each change persists immediately so an
// interrupted run keeps its progress.
func sync(st *store.Store, apps []directory.App, search func(name string) string, addMissing bool, log *slog.Logger) (updated, added int) {
	idx := buildIndex(apps)

	for name, rec := range st.Records() {
		fill := enrich(rec, name, idx, search)
		if fill == rec {
			continue
		}
		err := st.Apply(name, func(cur store.GameRecord, _ bool) store.GameRecord {
			if cur.DiscordAppID == "" {
				cur.DiscordAppID = fill.DiscordAppID
			}
			if cur.SteamAppID == "" {
				cur.SteamAppID = fill.SteamAppID
			}
			if cur.ExecutablePath == "" {
				cur.ExecutablePath = fill.ExecutablePath
			}
			return cur
		})
		if err != nil {
			log.Warn("failed to save record", "game", name, "error", err)
			continue
		}
		updated++
		log.Info("record enriched", "game", name,
			"client_id", fill.DiscordAppID, "steam_appid", fill.SteamAppID, "exe", fill.ExecutablePath)
	}

	if !addMissing {
		return updated, 0
	}
	for _, app := range apps {
		if _, ok := st.Lookup(app.Name); ok {
			continue
		}
		rec := store.GameRecord{
			Name:           app.Name,
			DiscordAppID:   app.ID,
			SteamAppID:     steamSKU(app),
			ExecutablePath: app.WindowsExecutable(),
			Image:          "steam",
		}
		if rec.SteamAppID == "" {
			rec.SteamAppID = search(app.Name)
		}
		if err := st.Put(rec); err != nil {
			log.Warn("failed to add record", "game", app.Name, "error", err)
			continue
		}
		added++
		log.Info("record added", "game", app.Name, "client_id", rec.DiscordAppID)
	}
	return updated, added
}

// enrich computes the filled-in version of one record without mutating the
// store. Resolution order matches the record's provenance: steam SKU cross
// reference first, then directory name match, then the storefront search.
func enrich(rec store.GameRecord, name string, idx index, search func(string) string) store.GameRecord {
	app, known := idx.byName[strings.ToLower(name)]

	if rec.DiscordAppID == "" {
		if id, ok := idx.bySteam[rec.SteamAppID]; ok && rec.SteamAppID != "" {
			rec.DiscordAppID = id
		} else if known {
			rec.DiscordAppID = app.ID
		}
	}
	if rec.SteamAppID == "" {
		if known && steamSKU(app) != "" {
			rec.SteamAppID = steamSKU(app)
		} else {
			rec.SteamAppID = search(name)
		}
	}
	if rec.ExecutablePath == "" && known {
		rec.ExecutablePath = app.WindowsExecutable()
	}
	return rec
}
