// Package stageimport parses pasted stage result text and matches the rider
// names it contains against the known riders.
package stageimport

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"

	"github.com/interpolis/tourpoule/internal/models"
)

// Normalize folds a name for comparison: NFC, transliterated to ASCII,
// lowercased, punctuation dropped, hyphens treated as spaces and runs of
// whitespace collapsed. "POGAČAR  Tadej" and "pogacar tadej" normalize alike.
func Normalize(s string) string {
	s = unidecode.Unidecode(norm.NFC.String(s))
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '-', unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Matcher resolves free-text names to riders.
type Matcher struct {
	names     map[string][]models.Rider
	lastNames map[string][]models.Rider
}

// NewMatcher indexes riders by "first last", "last first" and last name.
func NewMatcher(riders []models.Rider) *Matcher {
	m := &Matcher{
		names:     make(map[string][]models.Rider),
		lastNames: make(map[string][]models.Rider),
	}
	for _, r := range riders {
		first, last := Normalize(r.FirstName), Normalize(r.LastName)
		keys := map[string]bool{}
		if first != "" {
			keys[first+" "+last] = true
			keys[last+" "+first] = true
		} else {
			keys[last] = true
		}
		for k := range keys {
			m.names[k] = append(m.names[k], r)
		}
		if last != "" {
			m.lastNames[last] = append(m.lastNames[last], r)
		}
	}
	return m
}

// Match returns the rider for name. ambiguous is true when the name matches
// more than one rider.
func (m *Matcher) Match(name string) (rider models.Rider, ok bool, ambiguous bool) {
	key := Normalize(name)
	if key == "" {
		return models.Rider{}, false, false
	}
	if found := m.names[key]; len(found) > 0 {
		if len(found) > 1 {
			return models.Rider{}, false, true
		}
		return found[0], true, false
	}
	if found := m.lastNames[key]; len(found) > 0 {
		if len(found) > 1 {
			return models.Rider{}, false, true
		}
		return found[0], true, false
	}
	return models.Rider{}, false, false
}
