package feed

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
)

// newTestClient points a Client at a test server.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	// Rewire the port-based URL to the test server.
	port, _ := strconv.Atoi(server.URL[strings.LastIndex(server.URL, ":")+1:])
	c := New(port)
	c.BaseURL = server.URL
	return c
}

func TestRichText(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/presence" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"presence": {"richText": "Battle Royale - Lobby"}}`)
	})

	if got := c.RichText(); got != "Battle Royale - Lobby" {
		t.Errorf("RichText = %q", got)
	}
}

func TestRichText_AlternateCasing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"presence": {"RichText": "In Menus"}}`)
	})

	if got := c.RichText(); got != "In Menus" {
		t.Errorf("RichText = %q", got)
	}
}

func TestRichText_AbsentFeed(t *testing.T) {
	c := New(1) // nothing listens on port 1
	if got := c.RichText(); got != "" {
		t.Errorf("absent feed should yield empty, got %q", got)
	}
}

func TestRichText_ErrorStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	if got := c.RichText(); got != "" {
		t.Errorf("error status should yield empty, got %q", got)
	}
}

func TestAccessToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `{"accountId": "abc", "accessToken": "tok", "expiresAt": "2026-01-01T00:00:00Z"}`)
	})

	tok, ok := c.AccessToken()
	if !ok {
		t.Fatal("expected token")
	}
	if tok.AccountID != "abc" || tok.AccessToken != "tok" {
		t.Errorf("token = %+v", tok)
	}
}

func TestAccessToken_Incomplete(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"accountId": "abc"}`)
	})
	if _, ok := c.AccessToken(); ok {
		t.Error("incomplete token should not be returned")
	}
}
