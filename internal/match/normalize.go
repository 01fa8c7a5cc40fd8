package match

import (
	"regexp"
	"strings"
)

var (
	bracketRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	punctRe   = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	spaceRe   = regexp.MustCompile(`\s+`)
)

// albumNoise lists edition/version words stripped from album titles before
// comparison, so "Abbey Road (2019 Deluxe Remaster)" still matches "Abbey Road".
var albumNoise = map[string]struct{}{
	"deluxe":      {},
	"remaster":    {},
	"remastered":  {},
	"remasters":   {},
	"edition":     {},
	"expanded":    {},
	"explicit":    {},
	"live":        {},
	"session":     {},
	"sessions":    {},
	"version":     {},
	"anniversary": {},
	"bonus":       {},
	"mono":        {},
	"stereo":      {},
	"single":      {},
	"ep":          {},
}

// Normalize lowercases, strips bracketed/parenthetical annotations like
// "(Live)" or "[Remastered]", removes punctuation, and collapses whitespace.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = bracketRe.ReplaceAllString(s, " ")
	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// NormalizeAlbum applies [Normalize] and additionally drops edition/version
// noise words.
func NormalizeAlbum(s string) string {
	fields := strings.Fields(Normalize(s))
	kept := fields[:0]
	for _, f := range fields {
		if _, noisy := albumNoise[f]; !noisy {
			kept = append(kept, f)
		}
	}
	return strings.Join(kept, " ")
}

// hasRemasterMarker reports whether the raw title carries a remaster marker.
// Checked before bracket stripping since markers usually live in brackets or
// after a dash ("Hey Jude - Remastered 2015").
func hasRemasterMarker(title string) bool {
	return strings.Contains(strings.ToLower(title), "remaster")
}
