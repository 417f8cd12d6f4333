// Package directory maintains a cached snapshot of Discord's public
// detectable-applications directory and matches game titles against it.
//
// The directory is large and changes slowly, so it is fetched at most once
// per TTL and cached on disk with a timestamp. Matching is fuzzy: every
// entry is scored against the title over its primary name and all aliases,
// and callers apply their own confidence thresholds.
package directory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"tools.zach/dev/nowcord/internal/atomicfile"
)

// ///////////////////////////////////////////////
// Data Types
// ///////////////////////////////////////////////

// Executable is a per-OS executable name declared by a directory entry.
type Executable struct {
	OS         string `json:"os"`
	Name       string `json:"name"`
	IsLauncher bool   `json:"is_launcher,omitempty"`
}

// SKU is a third-party storefront listing declared by a directory entry.
type SKU struct {
	Distributor string `json:"distributor"`
	ID          string `json:"id"`
	SKU         string `json:"sku,omitempty"`
}

// App is one entry of the detectable-applications directory.
type App struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	Aliases        []string     `json:"aliases,omitempty"`
	Executables    []Executable `json:"executables,omitempty"`
	ThirdPartySKUs []SKU        `json:"third_party_skus,omitempty"`
}

// WindowsExecutable returns the entry's first non-launcher win32 executable
// name, or "" when it declares none.
func (a App) WindowsExecutable() string {
	for _, e := range a.Executables {
		if e.OS == "win32" && !e.IsLauncher {
			return e.Name
		}
	}
	return ""
}

// Candidate is a scored directory entry for a title.
type Candidate struct {
	App   App
	Score float64
}

// cacheDoc is the on-disk cache layout: a fetch timestamp plus the apps.
// The field names match the cache files older installs already have.
type cacheDoc struct {
	Timestamp int64 `json:"_ts"`
	Apps      []App `json:"apps"`
}

// ///////////////////////////////////////////////
// Directory
// ///////////////////////////////////////////////

// Directory fetches and caches the detectable-applications list.
type Directory struct {
	// URL is the directory endpoint.
	URL string
	// CachePath is where the timestamped snapshot lives on disk.
	CachePath string
	// TTL is how long a snapshot stays fresh.
	TTL time.Duration

	client *retryablehttp.Client
	now    func() time.Time
}

// New creates a Directory with a shared retrying HTTP client.
func New(url, cachePath string, ttl time.Duration) *Directory {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil

	return &Directory{
		URL:       url,
		CachePath: cachePath,
		TTL:       ttl,
		client:    client,
		now:       time.Now,
	}
}

// Apps returns the directory entries, refreshing the on-disk cache when it
// is missing, unreadable, or older than the TTL. A fetch failure with a
// stale-but-present cache falls back to the stale data.
func (d *Directory) Apps() ([]App, error) {
	cached, cachedErr := d.readCache()
	if cachedErr == nil && d.now().Unix()-cached.Timestamp < int64(d.TTL.Seconds()) {
		return cached.Apps, nil
	}

	apps, err := d.fetch()
	if err != nil {
		if cachedErr == nil {
			return cached.Apps, nil
		}
		return nil, err
	}

	doc := cacheDoc{Timestamp: d.now().Unix(), Apps: apps}
	if err := atomicfile.WriteJSON(d.CachePath, doc, 0o644); err != nil {
		// A failed cache write costs a re-fetch next time, nothing more.
		return apps, nil
	}
	return apps, nil
}

// readCache loads and parses the on-disk snapshot.
func (d *Directory) readCache() (cacheDoc, error) {
	var doc cacheDoc
	data, err := os.ReadFile(d.CachePath)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse directory cache: %w", err)
	}
	return doc, nil
}

// fetch downloads the full directory.
func (d *Directory) fetch() ([]App, error) {
	resp, err := d.client.Get(d.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch application directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("application directory returned status %d", resp.StatusCode)
	}

	var apps []App
	if err := json.NewDecoder(resp.Body).Decode(&apps); err != nil {
		return nil, fmt.Errorf("parse application directory: %w", err)
	}
	return apps, nil
}

// ///////////////////////////////////////////////
// Matching
// ///////////////////////////////////////////////

// Match scores every app against title and returns the candidates above
// floor, best first, capped to max. An entry's score is the maximum
// similarity over its primary name and each alias. On equal scores an
// exact primary-name match outranks one reached through an alias.
func Match(apps []App, title string, floor float64, max int) []Candidate {
	var out []Candidate
	for _, app := range apps {
		score := Similarity(title, app.Name)
		for _, alias := range app.Aliases {
			if s := Similarity(title, alias); s > score {
				score = s
			}
		}
		if score > floor {
			out = append(out, Candidate{App: app, Score: score})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return strings.EqualFold(out[i].App.Name, title) &&
			!strings.EqualFold(out[j].App.Name, title)
	})
	if len(out) > max {
		out = out[:max]
	}
	return out
}
