package probe

import (
	"regexp"
	"strings"
)

// brandingRe matches the client's branding suffix in window titles, e.g.
// "Celeste on GeForce NOW" or the localized "Celeste en GeForce NOW". The
// optional connective word covers the localizations the client ships.
var brandingRe = regexp.MustCompile(`(?i)\s*(?:\b(?:en|on|in|via)\b)?\s*GeForce\s*NOW.*$`)

// glyphReplacer strips trademark glyphs that some titles embed.
var glyphReplacer = strings.NewReplacer("®", "", "™", "")

// CleanTitle normalizes a raw window title into a game name: trademark
// glyphs and the trailing client-branding clause are removed. Cleaning an
// already-clean title returns it unchanged; a branding-only title cleans to
// the empty string.
func CleanTitle(raw string) string {
	s := glyphReplacer.Replace(raw)
	s = brandingRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
