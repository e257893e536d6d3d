package intent

import (
	"strings"
	"unicode"
)

// Normalize canonicalizes text for pattern matching. It lower-cases the input
// and keeps only ASCII letters, ASCII digits and whitespace. Whitespace runs are
// left as they are.
func Normalize(text string) string {
	lowered := strings.ToLower(text)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(r)
		}
	}
	return b.String()
}
