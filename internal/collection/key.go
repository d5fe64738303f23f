// Package collection defines how user-facing collection names map to storage namespaces.
package collection

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ErrInvalidKey is returned for collection names that cannot be used as a namespace.
var ErrInvalidKey = errors.New("invalid collection key")

// Normalize lowercases and trims name and turns every whitespace character into '_'.
// "Organic Chemistry" becomes "organic_chemistry".
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return '_'
		}
		return r
	}, name)
}

// Key normalizes name and checks the result is safe to use as a directory and index name.
// Only letters, digits, '_' and '-' are allowed.
func Key(name string) (string, error) {
	key := Normalize(name)
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	for _, r := range key {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '-' {
			continue
		}
		return "", fmt.Errorf("%w: %q contains %q", ErrInvalidKey, name, r)
	}
	return key, nil
}

// IndexName is the vector index collection name for key.
func IndexName(prefix, key string) string {
	return prefix + key
}
