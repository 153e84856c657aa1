// Package moderation screens the freeform text clients attach to
// collaboration events (activity descriptions, notification messages)
// before it is re-broadcast to other room members.
package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"

	"video2tool/errors"
)

// Censor matches a blocked-word list against normalized text and masks
// the offending characters in the original string. Matching is
// insensitive to case, punctuation, and common leet substitutions.
type Censor struct {
	matcher *goahocorasick.Machine
	mask    rune
}

func NewCensor(blockedWords []string, mask rune) (*Censor, error) {
	if len(blockedWords) == 0 {
		return nil, errors.ErrNoBlockedWords
	}
	patterns := make([][]rune, len(blockedWords))
	for i, word := range blockedWords {
		patterns[i], _ = normalize([]rune(word))
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	return &Censor{matcher: m, mask: mask}, nil
}

// Censor replaces every matched span with the mask rune, preserving the
// original spacing and punctuation around it.
func (c *Censor) Censor(text string) string {
	original := []rune(text)
	normalized, origIdx := normalize(original)
	if len(normalized) == 0 {
		return text
	}

	spans := c.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return text
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			original[i] = c.mask
		}
	}
	return string(original)
}

// normalize lowers the text, strips noise runes, and maps leet speak
// back to letters. origIdx tracks, for every normalized rune, its
// position in the original string so masking can be applied there.
func normalize(input []rune) ([]rune, []int) {
	normalized := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		clean := unleet(r)
		if unicode.IsPunct(clean) || unicode.IsSpace(clean) || unicode.IsSymbol(clean) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return normalized, origIdx
}

func unleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
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
