package chunking

import (
	"strings"
	"unicode"
)

// hyphenBreaks are end-of-line hyphenation artifacts left by PDF text extraction.
var hyphenBreaks = strings.NewReplacer("-\r\n", "", "-\n", "")

// JoinHyphenBreaks rejoins words hyphenated across a line break. It repeats until no
// break is left, so "a--\n\nb" becomes "ab" and the result is stable.
func JoinHyphenBreaks(s string) string {
	for strings.Contains(s, "-\n") || strings.Contains(s, "-\r\n") {
		s = hyphenBreaks.Replace(s)
	}
	return s
}

// Normalize strips layout artifacts from chunk text: words hyphenated across a line
// break are rejoined, every whitespace run becomes a single space and the result is trimmed.
// Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = JoinHyphenBreaks(s)

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			pendingSpace = true
			continue
		}
		if pendingSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		pendingSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
