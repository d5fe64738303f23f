package summarize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"slices"
	"strings"
)

var examQuestions = regexp.MustCompile(`(?i)\bexam(ination)? questions\b`)

// FilterExamQuestions drops every paragraph that mentions exam questions.
func FilterExamQuestions(summary string) string {
	blocks := strings.Split(summary, "\n\n")
	kept := blocks[:0]
	for _, b := range blocks {
		if !examQuestions.MatchString(b) {
			kept = append(kept, b)
		}
	}
	return strings.Join(kept, "\n\n")
}

// CacheKey identifies a summary request. Source order does not matter.
func CacheKey(collection string, sources []string, backend, instructions string) string {
	sorted := slices.Clone(sources)
	slices.Sort(sorted)

	h := sha256.New()
	h.Write([]byte(collection))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(sorted, "\x1f")))
	h.Write([]byte{0})
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write([]byte(instructions))
	return hex.EncodeToString(h.Sum(nil))
}
