// Package model defines the wire-level entity types that flow through the
// node: identifiers, transactions, validated transactions, block proposals
// and blocks.
package model

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/lightchain-sdp/node/crypto"
)

// Identifier is an opaque 32-byte hash-sized value. It is comparable and
// hashable by Go's built-in array equality, which is value equality — the
// deliberate fix for the reference-equality bug the persistent block store
// of this system's predecessor exhibited (comparing key byte slices by
// identity instead of content).
type Identifier [32]byte

// ZeroIdentifier is the all-zero identifier, used as the canonical
// previous-block-id of the genesis block.
var ZeroIdentifier Identifier

// Hash returns the Identifier obtained by hashing data with H.
func Hash(data []byte) Identifier {
	return Identifier(crypto.Sum32(data))
}

// Less reports whether id sorts strictly before other, by byte value.
// Used by the validator assigner (C6) to obtain a deterministic ordering
// of staked account ids.
func (id Identifier) Less(other Identifier) bool {
	return bytes.Compare(id[:], other[:]) < 0
}

// IsZero reports whether id is the all-zero identifier.
func (id Identifier) IsZero() bool {
	return id == ZeroIdentifier
}

// String returns the lowercase hex encoding of id.
func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns id as a freshly-allocated byte slice.
func (id Identifier) Bytes() []byte {
	b := make([]byte, len(id))
	copy(b, id[:])
	return b
}

// IdentifierFromHex decodes a hex-encoded identifier.
func IdentifierFromHex(s string) (Identifier, error) {
	var id Identifier
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, fmt.Errorf("identifier must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}
