// Package feed polls an optional local rich-presence sidecar
// (http://localhost:<port>/presence and /token). The sidecar belongs to a
// different launcher integration and may not be running at all, so every
// failure here is silently treated as "no data".
package feed

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Token is the sidecar's access-token response.
type Token struct {
	AccountID   string `json:"accountId"`
	AccessToken string `json:"accessToken"`
	ExpiresAt   string `json:"expiresAt,omitempty"`
}

// Client talks to the local feed.
type Client struct {
	// BaseURL is the sidecar root, e.g. "http://localhost:5000".
	BaseURL string

	http *retryablehttp.Client
}

// New creates a feed client for the given localhost port. The timeout is
// short and there are no retries: the feed is consulted inside the polling
// tick and must never stall it.
func New(port int) *Client {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.HTTPClient.Timeout = 3 * time.Second
	client.Logger = nil
	return &Client{
		BaseURL: fmt.Sprintf("http://localhost:%d", port),
		http:    client,
	}
}

// RichText returns the feed's current presence line, or "" when the feed
// is absent, erroring, or empty.
func (c *Client) RichText() string {
	var doc struct {
		Presence struct {
			RichText    string `json:"richText"`
			RichTextAlt string `json:"RichText"`
		} `json:"presence"`
	}
	if !c.getJSON("/presence", &doc) {
		return ""
	}
	if doc.Presence.RichText != "" {
		return doc.Presence.RichText
	}
	return doc.Presence.RichTextAlt
}

// AccessToken returns the feed's account token when one is available.
func (c *Client) AccessToken() (Token, bool) {
	var tok Token
	if !c.getJSON("/token", &tok) {
		return Token{}, false
	}
	if tok.AccountID == "" || tok.AccessToken == "" {
		return Token{}, false
	}
	return tok, true
}

// getJSON fetches and decodes one endpoint, reporting success.
func (c *Client) getJSON(path string, v any) bool {
	resp, err := c.http.Get(c.BaseURL + path)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		io.Copy(io.Discard, resp.Body)
		return false
	}
	return json.NewDecoder(resp.Body).Decode(v) == nil
}
