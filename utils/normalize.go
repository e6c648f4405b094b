package utils

import (
	"strings"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Lower(language.Und)

// NormalizeTitle reduces a film or person title to its merge identity:
// ASCII-folded, case-folded, punctuation stripped, whitespace collapsed.
// "Amélie" and "amelie " normalize equal; merges are only allowed between
// records whose titles normalize equal.
func NormalizeTitle(title string) string {
	s := unidecode.Unidecode(title)
	s = titleCaser.String(s)

	var b strings.Builder
	b.Grow(len(s))
	lastSpace := true
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastSpace = false
		case r == ' ' || r == '\t' || r == '-' || r == '_':
			if !lastSpace {
				b.WriteByte(' ')
				lastSpace = true
			}
		}
		// everything else (punctuation, symbols) drops out
	}
	return strings.TrimSpace(b.String())
}
