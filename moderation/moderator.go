package moderation

import (
	"log/slog"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// NameFilter rejects display names containing a blocked word.
// Matching ignores case, punctuation and common leet-speak substitutions,
// so "4dm1n" and "a.d.m.i.n" both hit "admin".
type NameFilter struct {
	log     *slog.Logger
	matcher *goahocorasick.Machine
}

// NewNameFilter builds the Aho-Corasick automaton once for all blocked words.
// An empty list yields a filter that accepts every name.
func NewNameFilter(blockedWords []string, log *slog.Logger) (*NameFilter, error) {
	patterns := make([][]rune, 0, len(blockedWords))
	for _, word := range blockedWords {
		if p := normalizeRunes([]rune(word)); len(p) > 0 {
			patterns = append(patterns, p)
		}
	}
	if len(patterns) == 0 {
		return &NameFilter{log: log}, nil
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &NameFilter{log: log, matcher: m}, nil
}

// Blocked returns the first blocked word found in name, if any.
func (f *NameFilter) Blocked(name string) (string, bool) {
	if f == nil || f.matcher == nil {
		return "", false
	}
	normalized := normalizeRunes([]rune(name))
	if len(normalized) == 0 {
		return "", false
	}
	terms := f.matcher.MultiPatternSearch(normalized, true)
	if len(terms) == 0 {
		return "", false
	}
	word := string(terms[0].Word)
	f.log.Debug("Blocked word in display name", "name", name, "word", word)
	return word, true
}

// ParseWordList splits a comma separated list, dropping blanks.
func ParseWordList(raw string) []string {
	var words []string
	for _, w := range strings.Split(raw, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common leet-speak characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
