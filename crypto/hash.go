// Package crypto provides the hash and signature primitives the rest of
// the node treats as black boxes: a hash function H and a signature
// scheme Σ.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the SHA-256 hash of data as a lowercase hex string.
func Hash(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// Sum32 returns the raw 32-byte SHA-256 digest of data.
func Sum32(data []byte) [32]byte {
	return sha256.Sum256(data)
}

// HashBytes returns the raw SHA-256 bytes of data.
func HashBytes(data []byte) []byte {
	h := sha256.Sum256(data)
	return h[:]
}
