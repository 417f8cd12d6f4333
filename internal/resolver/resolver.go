// Package resolver turns a cleaned window title into a game identity:
// the stored record for the title, enriched with storefront and directory
// identifiers as they become available.
//
// Resolution is deliberately split in two. The fast path (store lookup plus
// at most one storefront search) runs inline on the polling tick, so the
// tick always gets a record back immediately. Directory matching, which may
// hit the network and wait on user confirmation, runs as a detached task
// that hands its result back through the store.
package resolver

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tools.zach/dev/nowcord/internal/directory"
	"tools.zach/dev/nowcord/internal/store"
	"tools.zach/dev/nowcord/internal/storefront"
)

// Confirmer presents ambiguous directory candidates to the user and reports
// the chosen entry. Implementations must respect ctx: when it expires the
// question is withdrawn and the second return is false.
type Confirmer interface {
	Confirm(ctx context.Context, title string, candidates []directory.Candidate) (directory.App, bool)
}

// Resolver maps titles to game records.
type Resolver struct {
	Store     *store.Store
	Searcher  *storefront.Searcher
	Directory *directory.Directory
	// Confirmer handles ambiguous matches; nil means ambiguous matches
	// are dropped and retried from scratch on a later run.
	Confirmer Confirmer

	// NoiseFloor is the minimum similarity for a directory candidate.
	NoiseFloor float64
	// AutoApplyThreshold is the similarity at or above which the best
	// candidate is applied without asking.
	AutoApplyThreshold float64
	// MaxCandidates caps how many candidates a Confirmer is shown.
	MaxCandidates int
	// ConfirmTimeout bounds how long a Confirmer may deliberate.
	ConfirmTimeout time.Duration

	Log *slog.Logger

	mu      sync.Mutex
	pending map[string]bool

	spawn func(func())
}

// New creates a Resolver with the given collaborators and thresholds.
func New(st *store.Store, searcher *storefront.Searcher, dir *directory.Directory, log *slog.Logger) *Resolver {
	return &Resolver{
		Store:     st,
		Searcher:  searcher,
		Directory: dir,

		NoiseFloor:         0.35,
		AutoApplyThreshold: 0.88,
		MaxCandidates:      6,
		ConfirmTimeout:     30 * time.Second,

		Log:     log,
		pending: make(map[string]bool),
		spawn:   func(f func()) { go f() },
	}
}

// Resolve returns the record for title, creating a provisional one on first
// sight. created reports whether the title was new. Resolve never blocks on
// the directory: missing Discord identity is filled in by a background task
// and picked up on a later tick.
func (r *Resolver) Resolve(title string) (store.GameRecord, bool) {
	rec, ok := r.Store.Lookup(title)
	if !ok {
		rec = store.GameRecord{Name: title, Image: "steam"}
		if appID := r.searchStorefront(title); appID != "" {
			rec.SteamAppID = appID
		}
		if err := r.Store.Put(rec); err != nil {
			r.Log.Warn("failed to persist new game", "game", title, "error", err)
		}
		r.scheduleReconcile(title)
		return rec, true
	}

	if rec.SteamAppID == "" {
		if appID := r.searchStorefront(rec.Name); appID != "" {
			err := r.Store.Apply(rec.Name, func(cur store.GameRecord, _ bool) store.GameRecord {
				if cur.SteamAppID == "" {
					cur.SteamAppID = appID
				}
				return cur
			})
			if err != nil {
				r.Log.Warn("failed to persist storefront id", "game", rec.Name, "error", err)
			}
			rec.SteamAppID = appID
		}
	}
	if rec.DiscordAppID == "" {
		r.scheduleReconcile(rec.Name)
	}
	return rec, false
}

// searchStorefront looks the title up on the storefront, tolerating failure.
func (r *Resolver) searchStorefront(title string) string {
	appID, err := r.Searcher.AppID(title)
	if err != nil {
		r.Log.Warn("storefront search failed", "game", title, "error", err)
		return ""
	}
	return appID
}

// scheduleReconcile starts a background directory match for title unless
// one is already in flight.
func (r *Resolver) scheduleReconcile(title string) {
	r.mu.Lock()
	if r.pending[title] {
		r.mu.Unlock()
		return
	}
	r.pending[title] = true
	r.mu.Unlock()

	r.spawn(func() {
		defer func() {
			r.mu.Lock()
			delete(r.pending, title)
			r.mu.Unlock()
		}()
		r.reconcile(title)
	})
}

// reconcile matches title against the application directory and fills the
// record's Discord identity and executable path when confident enough.
func (r *Resolver) reconcile(title string) {
	apps, err := r.Directory.Apps()
	if err != nil {
		r.Log.Warn("application directory unavailable", "game", title, "error", err)
		return
	}

	candidates := directory.Match(apps, title, r.NoiseFloor, r.MaxCandidates)
	if len(candidates) == 0 {
		r.Log.Debug("no directory match", "game", title)
		return
	}

	best := candidates[0]
	var chosen directory.App
	switch {
	case best.Score >= r.AutoApplyThreshold:
		chosen = best.App
		r.Log.Info("directory match applied", "game", title, "app", chosen.Name, "score", best.Score)
	case r.Confirmer != nil:
		ctx, cancel := context.WithTimeout(context.Background(), r.ConfirmTimeout)
		defer cancel()
		app, ok := r.Confirmer.Confirm(ctx, title, candidates)
		if !ok {
			r.Log.Info("directory match declined", "game", title)
			return
		}
		chosen = app
	default:
		r.Log.Debug("ambiguous directory match dropped", "game", title, "best", best.App.Name, "score", best.Score)
		return
	}

	err = r.Store.Apply(title, func(rec store.GameRecord, ok bool) store.GameRecord {
		if rec.Name == "" {
			rec.Name = title
		}
		// Fill only what resolution has not produced yet; hand-edited
		// mappings win over directory data.
		if rec.DiscordAppID == "" {
			rec.DiscordAppID = chosen.ID
		}
		if rec.ExecutablePath == "" {
			rec.ExecutablePath = chosen.WindowsExecutable()
		}
		return rec
	})
	if err != nil {
		r.Log.Warn("failed to persist directory match", "game", title, "error", err)
	}
}
