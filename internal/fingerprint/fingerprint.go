// Package fingerprint identifies text content by a stable sha-256 digest.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// Fingerprint is the identity of one text blob
type Fingerprint struct {
	ContentHash string    `json:"content_hash"` // sha-256 of the exact bytes, hex encoded
	Length      int       `json:"length"`       // character (rune) count
	CreatedAt   time.Time `json:"created_at"`
}

// Compute fingerprints text at the current time
func Compute(text string) Fingerprint {
	return ComputeAt(text, time.Now().UTC())
}

// ComputeAt fingerprints text with an explicit creation time
func ComputeAt(text string, at time.Time) Fingerprint {
	return Fingerprint{
		ContentHash: Hash(text),
		Length:      utf8.RuneCountInString(text),
		CreatedAt:   at,
	}
}

// Hash returns the hex sha-256 digest of text
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Same reports whether two fingerprints describe identical content.
// Creation time is ignored.
func (f Fingerprint) Same(other Fingerprint) bool {
	return f.ContentHash == other.ContentHash
}

// WordCount counts whitespace separated tokens containing a letter or digit
func WordCount(text string) int {
	count := 0
	for _, field := range strings.Fields(text) {
		if strings.IndexFunc(field, isWordRune) >= 0 {
			count++
		}
	}
	return count
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
