package moderation

import (
	"strings"
	"unicode"

	"kutter/errors"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator masks censored words in message bodies before they are stored.
// Matching ignores case, punctuation, spacing and common leet substitutions,
// so "B.4.d g3r" is caught by "badger".
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// index maps each rune of the searchable text back to the body.
type index struct {
	runes    []rune
	original []int
}

func NewModerator(censoredWords []string, replacement rune) (*Moderator, error) {
	patterns := lo.FilterMap(censoredWords, func(word string, _ int) ([]rune, bool) {
		pattern := searchable([]rune(word)).runes
		return pattern, len(pattern) > 0
	})
	if len(patterns) == 0 {
		return nil, errors.ErrEmptyWords
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: m, replacement: replacement}, nil
}

// ParseWords splits a comma separated list, dropping blanks and duplicates.
func ParseWords(list string) []string {
	words := lo.Map(strings.Split(list, ","), func(word string, _ int) string {
		return strings.ToLower(strings.TrimSpace(word))
	})
	return lo.Uniq(lo.Compact(words))
}

// Censor returns the body with every censored occurrence masked, and the
// matched words in order of appearance.
func (m *Moderator) Censor(body string) (string, []string) {
	original := []rune(body)
	idx := searchable(original)
	if len(idx.runes) == 0 {
		return body, nil
	}

	terms := m.matcher.MultiPatternSearch(idx.runes, false)
	if len(terms) == 0 {
		return body, nil
	}

	var found []string
	for _, term := range terms {
		start, end := term.Pos, term.Pos+len(term.Word)
		if start < 0 || end > len(idx.original) {
			continue
		}
		// Mask from the first to the last matched rune, noise in between included
		for i := idx.original[start]; i <= idx.original[end-1]; i++ {
			original[i] = m.replacement
		}
		found = append(found, string(term.Word))
	}
	return string(original), found
}

func searchable(input []rune) index {
	idx := index{
		runes:    make([]rune, 0, len(input)),
		original: make([]int, 0, len(input)),
	}
	for i, r := range input {
		clean := unleet(r)
		if isNoise(clean) {
			continue
		}
		idx.runes = append(idx.runes, unicode.ToLower(clean))
		idx.original = append(idx.original, i)
	}
	return idx
}

func unleet(r rune) rune {
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
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
