// Copyright 2025 BPI Labs
//
// Package economy implements the Proof-of-Economic-Activity token
// engine: the PoE index Φ(t), its gating function Γ(Φ), the four-token
// supply ledger (GEN/NEX/FLX/AUR), per-job fee splitting, owner-salary
// guardrails, and the per-epoch report that commits to all of it.

package economy

import (
	"math/big"
	"time"

	"github.com/google/uuid"
)

// TokenSupplyState is the engine's only mutable balance-sheet state.
// SGEN never changes after genesis; SAUR always equals the sum of
// attested gold reserves; SNEX and SFLX change only through the
// gated mint/burn path in Engine.ProcessEpoch.
type TokenSupplyState struct {
	SGEN       *big.Int
	SNEX       *big.Int
	SFLX       *big.Int
	SAUR       *big.Int
	LastUpdate time.Time
}

// Clone returns a deep copy, used by Engine to stage a tentative next
// state that is only installed after every invariant check passes.
func (s TokenSupplyState) Clone() TokenSupplyState {
	return TokenSupplyState{
		SGEN:       new(big.Int).Set(s.SGEN),
		SNEX:       new(big.Int).Set(s.SNEX),
		SFLX:       new(big.Int).Set(s.SFLX),
		SAUR:       new(big.Int).Set(s.SAUR),
		LastUpdate: s.LastUpdate,
	}
}

// PoEComponents are the raw, unnormalized per-epoch measurements that
// feed Φ(t).
type PoEComponents struct {
	Volume    float64
	Liquidity float64
	Uptime    float64
	Quality   float64
}

// PoEWeights are the component weights in Φ = wV·V̂ + wL·L̂ + wU·Û + wQ·Q̂.
// Must sum to 1.
type PoEWeights struct {
	Volume    float64
	Liquidity float64
	Uptime    float64
	Quality   float64
}

// Sum returns the total of the four weights, used to validate Σw=1.
func (w PoEWeights) Sum() float64 {
	return w.Volume + w.Liquidity + w.Uptime + w.Quality
}

// PoEIndex is the computed Φ(t) for one epoch, carrying both the
// scalar and the normalized components it was built from so the
// epoch report is self-explanatory.
type PoEIndex struct {
	Phi        float64
	Components PoEComponents
	Epoch      uint64
}

// EconomicJob is one verified unit of economic activity feeding Φ
// aggregation and the fee split.
type EconomicJob struct {
	JobID       uuid.UUID
	MinerID     string
	Kind        string
	ValueGold   *big.Int // V_g(J), gold-equivalent value
	Quality     float64  // q(J) in [0,1]
	VerifiedAt  time.Time
	ReceiptsRef uuid.UUID
}

// FeeSplit is the gold-denominated result of splitting one job's fee
// among its four destinations. Spendable + Locked + OwnerSalary +
// Treasury must equal Fee.
type FeeSplit struct {
	JobID          uuid.UUID
	Fee            *big.Int
	MinerLocked    *big.Int
	MinerSpendable *big.Int
	OwnerSalary    *big.Int
	Treasury       *big.Int
}

// MinerWeightInput is the per-miner distribution weight input for NEX
// emission: W_i = PoENorm_i · Prestige_i · Diversity_i.
type MinerWeightInput struct {
	MinerID   string
	PoENorm   float64
	Prestige  float64
	Diversity float64
}

// Weight returns the combined, unnormalized distribution weight.
func (m MinerWeightInput) Weight() float64 {
	return m.PoENorm * m.Prestige * m.Diversity
}

// MinerDistribution is one miner's share of an epoch's NEX emission.
type MinerDistribution struct {
	MinerID string
	Weight  float64
	Amount  *big.Int
}

// PayoutRecord is the transparency record emitted for one owner-salary
// payout, hash-linkable into the epoch report that authorized it.
type PayoutRecord struct {
	JobID            uuid.UUID
	GrossGold        *big.Int
	ImmediateGold    *big.Int
	VestedGold       *big.Int
	EscrowedGold     *big.Int
	RequiresApproval bool
	ApprovalGranted  bool
	RecordHash       [32]byte
}

// EpochInputs bundles everything Engine.ProcessEpoch needs to settle
// one epoch; callers assemble this from verified jobs, oracle/utility
// telemetry, and bank-attested reserves.
type EpochInputs struct {
	Epoch                uint64
	Jobs                 []EconomicJob
	Components           PoEComponents
	NetUtilization       float64   // U_net, feeds FLX mint
	FeesFLX              *big.Int // FLX-denominated fees collected this epoch, feeds FLX burn
	ReserveAttestation   *big.Int // Σ attested gold reserves this epoch, nil if none arrived
	MinerWeights         []MinerWeightInput
	OwnerApprovalGranted bool // governance approval for payouts that require it
}

// EpochReport is the signed, hash-committed record of one epoch's
// economic settlement.
type EpochReport struct {
	Epoch          uint64
	PoE            PoEIndex
	TotalFee       *big.Int
	TotalLocked    *big.Int
	TotalSpendable *big.Int
	TotalTreasury  *big.Int
	NEXMinted      *big.Int
	FLXMinted      *big.Int
	FLXBurned      *big.Int
	SupplyAfter    TokenSupplyState
	Distribution   []MinerDistribution
	Payouts        []PayoutRecord
	Time           time.Time
	ReportHash     [32]byte
	Signer         []byte
	Signature      []byte
}
