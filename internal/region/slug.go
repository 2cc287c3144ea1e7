package region

import (
	"strings"

	"github.com/gosimple/slug"
)

// Administrative words that carry no geographic identity. They are only
// dropped when another word of the same segment, or of an earlier segment,
// survives.
var genericTokens = map[string]bool{
	"district": true,
	"region":   true,
	"division": true,
	"taluk":    true,
	"zone":     true,
	"state":    true,
	"province": true,
	"county":   true,
}

// Slug normalizes a free-form region identifier ("Kodagu District",
// "karnataka-kodagu", "São Paulo") into the key used for all artifact
// addressing. Hyphens separate a qualifier from the place itself, so only
// the last segment naming a place is kept; its words are transliterated to
// ASCII and joined with underscores. The result contains only [a-z0-9_]
// and is stable under re-application.
func Slug(input string) string {
	segments := strings.Split(input, "-")

	var fallback []string
	for i := len(segments) - 1; i >= 0; i-- {
		words := words(segments[i])
		if len(words) == 0 {
			continue
		}
		if fallback == nil {
			fallback = words
		}

		specific := words[:0:0]
		for _, word := range words {
			if !genericTokens[word] {
				specific = append(specific, word)
			}
		}
		if len(specific) > 0 {
			return strings.Join(specific, "_")
		}
	}
	return strings.Join(fallback, "_")
}

// words transliterates one segment and splits it on everything that is
// not a letter or digit.
func words(segment string) []string {
	return strings.FieldsFunc(slug.Make(segment), func(r rune) bool {
		return r == '-' || r == '_'
	})
}
