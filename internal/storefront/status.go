package storefront

import (
	"strconv"
	"strings"
)

// statusSeparators are tried in this fixed priority order when splitting a
// scraped presence line into details and state.
var statusSeparators = []string{"|", " - ", ":", "›", ">"}

// SplitStatus splits a raw presence line at the first occurrence of the
// highest-priority separator it contains. With no separator the whole text
// becomes details and state is empty.
func SplitStatus(s string) (details, state string) {
	for _, sep := range statusSeparators {
		if i := strings.Index(s, sep); i >= 0 {
			return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+len(sep):])
		}
	}
	return strings.TrimSpace(s), ""
}

// GroupState renders a state line from a scraped group size. Zero means the
// size is unknown and no line is derived.
func GroupState(size int) string {
	switch {
	case size <= 0:
		return ""
	case size == 1:
		return "Playing solo"
	default:
		return "In a group (" + strconv.Itoa(size) + " players)"
	}
}
