// Copyright 2025 BPI Labs

package ledger

import (
	"time"

	"github.com/bpinet/bpci/pkg/bls"
	"github.com/google/uuid"
)

// BlsCommit aggregates validator signatures over a block header.
type BlsCommit struct {
	HeaderHash      [32]byte
	AggregateSig    []byte // 48-byte compressed G1 point
	ValidatorBitmap []byte // one bit per validator-set position
	Round           uint32
	Height          uint64
}

// Block is the unit the ledger persists once a height finalizes.
type Block struct {
	Height        uint64
	PrevHash      [32]byte
	TxMerkleRoot  [32]byte
	StateRoot     [32]byte
	ReceiptsRoot  [32]byte
	Timestamp     time.Time
	Proposer      string
	BlsCommit     BlsCommit
}

// Hash computes the header hash the block's BLS commit signs over.
func (b *Block) Hash() [32]byte {
	return blockHeaderHash(b.Height, b.PrevHash, b.TxMerkleRoot, b.StateRoot, b.ReceiptsRoot, b.Timestamp, b.Proposer)
}

// AnchorStatus tracks an anchor's lifecycle at the target chain.
type AnchorStatus string

const (
	AnchorPending   AnchorStatus = "pending"
	AnchorSubmitted AnchorStatus = "submitted"
	AnchorConfirmed AnchorStatus = "confirmed"
	AnchorFailed    AnchorStatus = "failed"
)

// Anchor records a periodic notarization of ledger state to an
// external target. Anchors are advisory: they never affect finality
// and are never rolled back once submitted.
type Anchor struct {
	AnchorID         uuid.UUID
	SourceBlockHash  [32]byte
	AnchorRoot       [32]byte
	Signatures       [][]byte
	TargetDescriptor string
	SubmittedAt      time.Time
	Confirmations    int
	Status           AnchorStatus
	Handle           string
	Attempts         int
}

// ValidatorStatus is a validator's membership state in the active set.
type ValidatorStatus string

const (
	ValidatorActive  ValidatorStatus = "active"
	ValidatorJailed  ValidatorStatus = "jailed"
	ValidatorLeaving ValidatorStatus = "leaving"
)

// Validator is one entry in the consensus engine's validator set, as
// recorded by the ledger for block-indexed rotation.
type Validator struct {
	ValidatorID string
	PublicKey   *bls.PublicKey
	Weight      uint64
	Status      ValidatorStatus
}
