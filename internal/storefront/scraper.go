package storefront

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/net/html"
)

// ErrSessionExpired is returned when the rich-presence page redirects to a
// login form, meaning the stored Steam cookie is no longer valid.
var ErrSessionExpired = errors.New("steam session expired")

// Presence is what one scrape of the rich-presence test page yielded.
type Presence struct {
	// RichText is the localized rich-presence line, or "" when the page
	// showed none (or only an unlocalized key, which is filtered out).
	RichText string
	// GroupSize is the steam_player_group_size value, or 0 when absent.
	GroupSize int
}

// Scraper fetches and parses the Steam rich-presence test page. The page
// shows the logged-in user's own presence, so requests carry the session
// cookie.
type Scraper struct {
	// URL is the rich-presence test page.
	URL string
	// Cookie is the steamLoginSecure session cookie value.
	Cookie string

	client *retryablehttp.Client
}

// NewScraper creates a Scraper with a shared retrying HTTP client.
func NewScraper(url, cookie string) *Scraper {
	client := retryablehttp.NewClient()
	client.RetryMax = 2
	client.HTTPClient.Timeout = 10 * time.Second
	client.Logger = nil
	return &Scraper{URL: url, Cookie: cookie, client: client}
}

// Scrape fetches the test page once. A missing URL, an empty page, or a
// filtered result all return a zero Presence with no error; only transport
// failures and an expired session are errors.
func (s *Scraper) Scrape() (Presence, error) {
	if s.URL == "" {
		return Presence{}, nil
	}

	req, err := retryablehttp.NewRequest("GET", s.URL, nil)
	if err != nil {
		return Presence{}, fmt.Errorf("build rich presence request: %w", err)
	}
	if s.Cookie != "" {
		req.Header.Set("Cookie", "steamLoginSecure="+s.Cookie)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return Presence{}, fmt.Errorf("fetch rich presence page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		io.Copy(io.Discard, resp.Body)
		return Presence{}, fmt.Errorf("rich presence page returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Presence{}, fmt.Errorf("read rich presence page: %w", err)
	}
	if strings.Contains(string(body), "Sign In") || strings.Contains(strings.ToLower(resp.Request.URL.Path), "login") {
		return Presence{}, ErrSessionExpired
	}

	doc, err := html.Parse(strings.NewReader(string(body)))
	if err != nil {
		return Presence{}, fmt.Errorf("parse rich presence page: %w", err)
	}

	return Presence{
		RichText:  richText(doc),
		GroupSize: groupSize(doc),
	}, nil
}

// richText extracts the localized rich-presence line: the text following
// the "Localized Rich Presence Result" label. Placeholder and unlocalized
// results (containing '#') are filtered to "".
func richText(doc *html.Node) string {
	label := findElement(doc, "b", func(n *html.Node) bool {
		return strings.Contains(strings.ToLower(nodeText(n)), "localized rich presence result")
	})
	if label == nil {
		return ""
	}

	sib := label.NextSibling
	if sib == nil || sib.Type != html.TextNode {
		return ""
	}
	text := strings.TrimSpace(sib.Data)
	if text == "" || strings.Contains(text, "No rich presence keys set") || strings.Contains(text, "#") {
		return ""
	}
	return text
}

// groupSize extracts steam_player_group_size from the key/value table the
// test page renders, or 0 when it is absent.
func groupSize(doc *html.Node) int {
	size := 0
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "tr" || size != 0 {
			return
		}
		var cells []string
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode && c.Data == "td" {
				cells = append(cells, strings.TrimSpace(nodeText(c)))
			}
		}
		if len(cells) >= 2 && strings.Contains(cells[0], "steam_player_group_size") {
			if v, err := strconv.Atoi(cells[1]); err == nil && v > 0 {
				size = v
			}
		}
	})
	return size
}

// ///////////////////////////////////////////////
// HTML Helpers
// ///////////////////////////////////////////////

// walk visits every node of the tree depth-first.
func walk(n *html.Node, visit func(*html.Node)) {
	visit(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, visit)
	}
}

// findElement returns the first element with the given tag for which match
// returns true, or nil.
func findElement(doc *html.Node, tag string, match func(*html.Node) bool) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) {
		if found == nil && n.Type == html.ElementNode && n.Data == tag && match(n) {
			found = n
		}
	})
	return found
}

// nodeText concatenates all text content beneath a node.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	walk(n, func(c *html.Node) {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	})
	return sb.String()
}
