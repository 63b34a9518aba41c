// Package runname derives human-readable run names from goal text.
package runname

import (
	"strings"
	"unicode"
)

const maxWords = 4

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "for": true, "of": true,
	"to": true, "and": true, "with": true, "that": true, "in": true,
	"on": true, "my": true, "our": true, "build": true, "make": true,
	"create": true,
}

// FromGoal turns free-form goal text into a short kebab-case name safe for
// file names and object keys. Empty or all-stopword goals become "run".
func FromGoal(goal string) string {
	var words []string
	for _, w := range strings.FieldsFunc(strings.ToLower(goal), splitRune) {
		if stopwords[w] {
			continue
		}
		words = append(words, w)
		if len(words) == maxWords {
			break
		}
	}
	if len(words) == 0 {
		return "run"
	}
	return strings.Join(words, "-")
}

func splitRune(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}
