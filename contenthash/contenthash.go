// Package contenthash computes content integrity digests for
// explorations. The stored hash lets any reader verify that content has
// not drifted since it was written.
package contenthash

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher produces a stable digest of exploration content.
type Hasher interface {
	// Sum returns the digest of content as a lowercase hex string.
	Sum(content string) string
}

// SHA256 is the default Hasher.
type SHA256 struct{}

// Sum returns the SHA-256 digest of content as 64 lowercase hex characters.
func (SHA256) Sum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
