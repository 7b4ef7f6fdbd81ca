// Copyright 2025 BPI Labs
//
// Package bankmesh implements peer bank discovery, inter-bank
// liquidity agreements, weighted governance proposals, and settlement
// progression across the bank mesh.

package bankmesh

import (
	"time"

	"github.com/google/uuid"
)

// PeerStatus tracks a mesh peer's liveness.
type PeerStatus string

const (
	PeerActive    PeerStatus = "active"
	PeerInactive  PeerStatus = "inactive"
	PeerSuspended PeerStatus = "suspended"
)

// Peer is one bank in the mesh.
type Peer struct {
	PeerID        string
	PublicKey     *[32]byte // X25519 public key for control-message encryption
	VerifyKey     []byte    // Ed25519 public key for control-message signatures
	Weight        uint64    // governance voting weight
	Status        PeerStatus
	LastHeartbeat time.Time
	JoinedAt      time.Time
}

// LiquidityRequest is a broadcast ask for liquidity; peers respond
// with LiquidityOffers, and acceptance creates an Agreement.
type LiquidityRequest struct {
	ReqID      uuid.UUID
	Token      string
	Amount     int64
	MaxRate    float64
	Duration   time.Duration
	Requester  string
	CreatedAt  time.Time
	Offers     []LiquidityOffer
}

// LiquidityOffer is one peer's response to a LiquidityRequest.
type LiquidityOffer struct {
	PeerID string
	Rate   float64
	Amount int64
}

// LiquiditySharingAgreement is the accepted terms between a lender and
// a borrower for one liquidity request.
type LiquiditySharingAgreement struct {
	ID        uuid.UUID
	ReqID     uuid.UUID
	Token     string
	Amount    int64
	Rate      float64
	Duration  time.Duration
	Lender    string
	Borrower  string
	CreatedAt time.Time
}

// SettlementPhase is a node in the settlement state machine's closed
// transition graph.
type SettlementPhase string

const (
	SettlementInitiated SettlementPhase = "initiated"
	SettlementLocked    SettlementPhase = "locked"
	SettlementCleared   SettlementPhase = "cleared"
	SettlementCompleted SettlementPhase = "completed"
	SettlementFailed    SettlementPhase = "failed"
)

// Settlement is one inter-bank transfer progressing through the
// settlement state machine.
type Settlement struct {
	ID        uuid.UUID
	FromBank  string
	ToBank    string
	Token     string
	Amount    int64
	Purpose   string
	Phase     SettlementPhase
	Created   time.Time
	Updated   time.Time
	Hash      [32]byte
}

// ProposalStatus is a governance proposal's lifecycle stage.
type ProposalStatus string

const (
	ProposalVoting   ProposalStatus = "voting"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
	ProposalExecuted ProposalStatus = "executed"
	ProposalExpired  ProposalStatus = "expired"
)

// Proposal is a weighted governance proposal: type-tagged spec bytes,
// a voting deadline, and (once approved) a timelock before execution.
type Proposal struct {
	ID        uuid.UUID
	Type      string
	Spec      []byte
	Deadline  time.Time
	TExec     time.Duration
	Emergency bool
	Votes     map[string]bool // peerID -> approve
	Status    ProposalStatus
	CreatedAt time.Time
	ApprovedAt time.Time
}

// ControlMessage is a signed, peer-to-peer mesh control message.
// Signature covers the canonical encoding of Type, the wire body
// (Sealed when present, otherwise Payload) and Sender; Sealed (when present) is the AEAD ciphertext of Payload under
// X25519 key agreement between Sender and the recipient.
type ControlMessage struct {
	Type      string
	Payload   []byte
	Sealed    []byte
	Nonce     [24]byte
	Sender    string
	Signature []byte
}

const (
	// DefaultSettlementTimeout rolls a stuck locked settlement back to
	// initiated and releases its escrow.
	DefaultSettlementTimeout = 30 * time.Minute
	// DefaultHeartbeatInterval is the expected peer heartbeat cadence.
	DefaultHeartbeatInterval = time.Minute
	// MissedHeartbeatsBeforeInactive marks a peer inactive once it has
	// missed this many consecutive heartbeat intervals.
	MissedHeartbeatsBeforeInactive = 3
	// ApprovalThreshold is the weighted-approval bar for ordinary
	// proposals.
	ApprovalThreshold = 0.67
	// EmergencyApprovalThreshold is the weighted-approval bar for
	// emergency proposals.
	EmergencyApprovalThreshold = 0.80
)
