package model

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lightchain-sdp/node/crypto"
)

// ErrInvalidArgument is returned by the ingest engine when an entity of an
// unaccepted kind is submitted to Process.
var ErrInvalidArgument = errors.New("model: entity kind not accepted")

// EntityKind tags the variant of a wire Entity.
type EntityKind string

const (
	KindTransaction          EntityKind = "transaction"
	KindValidatedTransaction EntityKind = "validated_transaction"
	KindBlockProposal        EntityKind = "block_proposal"
	KindBlock                EntityKind = "block"
	// KindOpaque tags any entity kind the wire protocol permits but the
	// ingest engine does not understand.
	KindOpaque EntityKind = "opaque"
)

// Entity is any message that flows through the system. Its id is the hash
// of its canonical encoding. Tagged variants replace runtime type
// assertions in the ingest engine's dispatch.
type Entity interface {
	Kind() EntityKind
	ID() Identifier
}

// Signature is an opaque signature produced by the black-box scheme Σ.
type Signature []byte

// Sign produces a Signature over data with priv.
func Sign(priv crypto.PrivateKey, data []byte) Signature {
	sigHex := crypto.Sign(priv, data)
	sig, err := hex.DecodeString(sigHex)
	if err != nil {
		// crypto.Sign always returns valid hex; a decode failure here
		// indicates a broken black-box implementation, not caller error.
		panic(err)
	}
	return sig
}

// Verify checks sig against data using pub.
func Verify(pub crypto.PublicKey, data []byte, sig Signature) error {
	return crypto.Verify(pub, data, hex.EncodeToString(sig))
}

// ---- Transaction ----

// Transaction is the atomic unfunded transfer intent.
type Transaction struct {
	RefBlockID Identifier
	Sender     Identifier
	Receiver   Identifier
	Amount     uint64
	Signature  Signature
}

// txCanonicalBody holds the fields covered by Transaction's id/signature,
// excluding the Signature field itself: the id hashes the signed body
// only.
type txCanonicalBody struct {
	RefBlockID string `json:"ref_block_id"`
	Sender     string `json:"sender"`
	Receiver   string `json:"receiver"`
	Amount     uint64 `json:"amount"`
}

// CanonicalEncode returns the deterministic encoding of tx excluding its
// signature.
func (tx *Transaction) CanonicalEncode() []byte {
	body := txCanonicalBody{
		RefBlockID: tx.RefBlockID.String(),
		Sender:     tx.Sender.String(),
		Receiver:   tx.Receiver.String(),
		Amount:     tx.Amount,
	}
	data, err := json.Marshal(body)
	if err != nil {
		// json.Marshal on a struct of strings and a uint64 cannot fail.
		panic(fmt.Sprintf("model: marshal transaction body: %v", err))
	}
	return data
}

// ID returns H(CanonicalEncode()).
func (tx *Transaction) ID() Identifier {
	return Hash(tx.CanonicalEncode())
}

// Kind identifies tx as a Transaction entity.
func (tx *Transaction) Kind() EntityKind { return KindTransaction }

// ---- ValidatedTransaction ----

// ValidatedTransaction is a Transaction plus the certificates asserting
// that an assigned quorum of validators approved it.
type ValidatedTransaction struct {
	Transaction
	Certificates []Signature
}

// ID returns the id of the underlying transaction: certificates are not
// part of the hashed/signed body, so two deliveries of the same
// transaction with different certificate sets still share one id.
func (vt *ValidatedTransaction) ID() Identifier {
	return vt.Transaction.ID()
}

// Kind identifies vt as a ValidatedTransaction entity.
func (vt *ValidatedTransaction) Kind() EntityKind { return KindValidatedTransaction }

// ---- BlockHeader / BlockProposal ----

// BlockHeader carries a block's metadata.
type BlockHeader struct {
	Height            uint64
	PreviousBlockID   Identifier
	ProposerID        Identifier
	PayloadMerkleRoot Identifier
}

type headerCanonicalBody struct {
	Height            uint64 `json:"height"`
	PreviousBlockID   string `json:"previous_block_id"`
	ProposerID        string `json:"proposer_id"`
	PayloadMerkleRoot string `json:"payload_merkle_root"`
}

// CanonicalEncode returns the deterministic encoding of h.
func (h BlockHeader) CanonicalEncode() []byte {
	body := headerCanonicalBody{
		Height:            h.Height,
		PreviousBlockID:   h.PreviousBlockID.String(),
		ProposerID:        h.ProposerID.String(),
		PayloadMerkleRoot: h.PayloadMerkleRoot.String(),
	}
	data, err := json.Marshal(body)
	if err != nil {
		panic(fmt.Sprintf("model: marshal block header: %v", err))
	}
	return data
}

// ID returns H(CanonicalEncode()).
func (h BlockHeader) ID() Identifier {
	return Hash(h.CanonicalEncode())
}

// BlockProposal is a proposed block: a header, its ordered transaction
// payload, and the proposer's signature over the header.
type BlockProposal struct {
	Header            BlockHeader
	Payload           []ValidatedTransaction
	ProposerSignature Signature
}

// CanonicalEncode returns the header's canonical encoding: the payload is
// already committed to via Header.PayloadMerkleRoot, and the proposer
// signature is excluded since it signs this very encoding.
func (p *BlockProposal) CanonicalEncode() []byte {
	return p.Header.CanonicalEncode()
}

// ID returns H(CanonicalEncode()).
func (p *BlockProposal) ID() Identifier {
	return Hash(p.CanonicalEncode())
}

// Kind identifies p as a BlockProposal entity.
func (p *BlockProposal) Kind() EntityKind { return KindBlockProposal }

// ---- Block ----

// Block is an accepted proposal plus the certificates of the validators
// that signed off on it.
type Block struct {
	Proposal     BlockProposal
	Certificates []Signature
}

// ID returns the id of the underlying proposal's header: a block and its
// proposal share an id, since the certificates that distinguish them are
// not part of the signed/hashed body.
func (b *Block) ID() Identifier {
	return b.Proposal.ID()
}

// Kind identifies b as a Block entity.
func (b *Block) Kind() EntityKind { return KindBlock }

// Height returns the block's height for convenience.
func (b *Block) Height() uint64 { return b.Proposal.Header.Height }

// PreviousBlockID returns the block's previous-block-id for convenience.
func (b *Block) PreviousBlockID() Identifier { return b.Proposal.Header.PreviousBlockID }

// ---- Opaque ----

// OpaqueEntity is any wire entity kind the ingest engine does not
// understand. It round-trips through the wire codec but is always
// rejected by Process.
type OpaqueEntity struct {
	DeclaredKind EntityKind
	Raw          []byte
}

// Kind returns the entity's declared (unrecognised) kind.
func (o *OpaqueEntity) Kind() EntityKind { return o.DeclaredKind }

// ID returns H(Raw).
func (o *OpaqueEntity) ID() Identifier { return Hash(o.Raw) }
