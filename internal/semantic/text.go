package semantic

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// NormalizeQuery trims and collapses whitespace in a user query.
func NormalizeQuery(q string) string {
	return strings.Join(strings.Fields(q), " ")
}

// LabelText is the text embedded for a benefit label.
func LabelText(label string) string {
	return NormalizeQuery(label)
}

// TextHash returns a SHA-256 hex digest for change detection.
func TextHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h)
}
