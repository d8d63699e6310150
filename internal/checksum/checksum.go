// Package checksum fingerprints document content.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Body returns the digest of a document body with trailing whitespace
// removed, so a header rewrite that only changes the blank line after the
// frontmatter is not reported as a content change.
func Body(body string) string {
	end := len(body)
	for end > 0 {
		switch body[end-1] {
		case ' ', '\t', '\n', '\r':
			end--
			continue
		}
		break
	}
	start := 0
	for start < end && (body[start] == '\n' || body[start] == '\r') {
		start++
	}
	return Sum([]byte(body[start:end]))
}
