package rag

import "strings"

// Polish flattens model output to single-spaced prose: line breaks and tabs become
// spaces, runs of whitespace collapse and the ends are trimmed.
func Polish(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
