// Copyright 2025 BPI Labs

package partner

import (
	"time"

	"github.com/google/uuid"
)

// ChainStatus is a partner chain's registration lifecycle.
type ChainStatus string

const (
	ChainActive   ChainStatus = "active"
	ChainDegraded ChainStatus = "degraded"
	ChainInactive ChainStatus = "inactive"
)

// Chain is an external blockchain registered for revenue sharing.
type Chain struct {
	ChainID            string
	Name               string
	RPC                string
	WS                 string
	RepresentativeAddr string
	SharePct           float64
	Status             ChainStatus
	JoinedAt           time.Time
	TotalPaid          int64
}

// Partnership binds a partner chain to this home chain once both
// sides have signed. Mutual is true only when both signatures are
// present.
type Partnership struct {
	ID             uuid.UUID
	PartnerChainID string
	HomeChainID    string
	SigPartner     []byte
	SigHome        []byte
	Hash           [32]byte
}

// Mutual reports whether both parties have signed this partnership.
func (p Partnership) Mutual() bool {
	return len(p.SigPartner) > 0 && len(p.SigHome) > 0
}

// Mode is the auction settlement mode: testnet emits mock
// settlements to the local store, mainnet runs the real revenue path.
type Mode string

const (
	ModeTestnet Mode = "testnet"
	ModeMainnet Mode = "mainnet"
)

// Share is one partner's slice of a settled auction window's revenue.
type Share struct {
	PartnerChainID string
	Amount         int64
}

// DistributionRecord is the append-only record of one auction
// window's revenue split, committed by a Merkle root over the full
// distribution table.
type DistributionRecord struct {
	DistributionID  uuid.UUID
	Window          uint64
	Revenue         int64
	Shares          []Share
	HomeShare       int64
	CommunityShare  int64
	GovernanceShare int64
	MerkleRoot      [32]byte
	CreatedAt       time.Time
}

// NotifyResult is the outcome of notifying one partner of its share.
type NotifyResult struct {
	PartnerChainID string
	Acked          bool
	Attempts       int
	Err            error
}

// PartnerChainAdapter is the abstract external collaborator used to
// reach a specific partner chain. No concrete protocol client is
// implemented here; callers wire in their own per chain.
type PartnerChainAdapter interface {
	Notify(distributionID uuid.UUID, amount int64, proof [][]byte) (ack bool, err error)
	Health() (healthy bool, err error)
}
