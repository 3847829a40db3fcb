// Package id generates prefixed identifiers for rows this server mints
// itself (users; ingested catalog rows keep their upstream IDs).
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// IDs land in URL path segments ("/users/{userID}/..."), so the alphabet
// stays alphanumeric: no "-" or "_" that would read oddly next to the
// prefix separator.
const (
	alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	size     = 16
)

// Generate creates a prefixed unique ID, e.g. "usr-V1StGXR8Z5jdHi6B".
//
// Returns an error if the system has insufficient entropy for secure
// random generation.
func Generate(prefix string) (string, error) {
	suffix, err := gonanoid.Generate(alphabet, size)
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + suffix, nil
}
