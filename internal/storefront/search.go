// Package storefront integrates with Steam: name search for app IDs,
// scraping of the rich-presence test page, and status-line derivation
// shared by the presence builder.
package storefront

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// searchEntry is one result of the Steam app name search.
type searchEntry struct {
	AppID json.Number `json:"appid"`
	Name  string      `json:"name"`
}

// Searcher queries the Steam app name-search endpoint.
type Searcher struct {
	// BaseURL is the search endpoint; the escaped query is appended as a
	// path segment.
	BaseURL string

	client *retryablehttp.Client
}

// NewSearcher creates a Searcher with a shared retrying HTTP client.
func NewSearcher(baseURL string) *Searcher {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	return &Searcher{BaseURL: baseURL, client: client}
}

// AppID looks up the Steam app ID for a game name. An exact
// case-insensitive name match wins; otherwise the first result is taken.
// No results yields "", nil, matching how an absent storefront identity is
// a normal record state rather than an error.
func (s *Searcher) AppID(name string) (string, error) {
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/" + url.PathEscape(name)
	resp, err := s.client.Get(endpoint)
	if err != nil {
		return "", fmt.Errorf("steam app search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("steam app search returned status %d", resp.StatusCode)
	}

	var entries []searchEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return "", fmt.Errorf("parse steam app search: %w", err)
	}
	if len(entries) == 0 {
		return "", nil
	}

	for _, e := range entries {
		if strings.EqualFold(e.Name, name) {
			return e.AppID.String(), nil
		}
	}
	return entries[0].AppID.String(), nil
}
