package engine

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

// Canonicalize turns a free-text guess into its comparison key: full
// uppercase, NFD, then only letters, decimal digits and "other symbol"
// runes survive. "Café!" and "CAFE" both become "CAFE".
func Canonicalize(raw string) string {
	// cases.Caser is stateful, so one per call.
	upper := cases.Upper(language.Und).String(raw)
	decomposed := norm.NFD.String(upper)

	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if unicode.IsLetter(r) || unicode.Is(unicode.Nd, r) || unicode.Is(unicode.So, r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// badVariant is the joke title of a canonical answer: "THE..." becomes
// "THEBAD...", anything else gets a "BAD" prefix.
func badVariant(canonical string) string {
	if rest, ok := strings.CutPrefix(canonical, "THE"); ok {
		return "THEBAD" + rest
	}
	return "BAD" + canonical
}

func buildPreload(paintings []*Painting) map[string]string {
	var ordered []string
	for _, p := range paintings {
		for _, im := range p.Images {
			ordered = append(ordered, im.URL)
		}
	}

	preload := make(map[string]string, len(ordered))
	for i, u := range ordered {
		preload[u] = ordered[(i+1)%len(ordered)]
	}
	return preload
}
