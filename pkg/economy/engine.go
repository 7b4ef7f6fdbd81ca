// Copyright 2025 BPI Labs
//
// Engine owns TokenSupplyState and settles one epoch at a time behind
// a single mutex, mirroring the mutex-guarded tokenomics engine
// struct's rule of thumb: compute the whole epoch's effects first,
// then commit them atomically, never mutate supply incrementally
// mid-computation.

package economy

import (
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/bpinet/bpci/pkg/walletcrypto"
	"github.com/google/uuid"
)

// Engine is the Proof-of-Economic-Activity token engine: Φ(t), the
// gating function, the four-token supply ledger, and owner-salary
// guardrails, all behind one lock so an epoch commit is all-or-nothing.
type Engine struct {
	mu sync.Mutex

	wallet  walletcrypto.Wallet
	params  *GovernanceParams
	means   *RollingMeans
	payout  PayoutPolicy
	weights PoEWeights

	supply TokenSupplyState
}

// NewEngine constructs an Engine at genesis supply sGEN (fixed
// forever) with zero NEX/FLX/AUR in circulation.
func NewEngine(wallet walletcrypto.Wallet, params *GovernanceParams, weights PoEWeights, payout PayoutPolicy, sGEN *big.Int) (*Engine, error) {
	if weights.Sum() < 0.999 || weights.Sum() > 1.001 {
		return nil, ErrInvalidWeights
	}
	return &Engine{
		wallet:  wallet,
		params:  params,
		means:   NewRollingMeans(0.2),
		payout:  payout,
		weights: weights,
		supply: TokenSupplyState{
			SGEN:       new(big.Int).Set(sGEN),
			SNEX:       big.NewInt(0),
			SFLX:       big.NewInt(0),
			SAUR:       big.NewInt(0),
			LastUpdate: time.Time{},
		},
	}, nil
}

// Supply returns a snapshot of the current token supply state.
func (e *Engine) Supply() TokenSupplyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.supply.Clone()
}

// Params returns the engine's governance parameter vector, the same
// instance ProcessEpoch reads from, so an approved governance proposal
// can update a parameter in place between epochs.
func (e *Engine) Params() *GovernanceParams {
	return e.params
}

// ProcessEpoch settles one epoch: computes Φ, splits fees per job,
// gates NEX/FLX mint and FLX burn, reconciles AUR against attested
// reserves, evaluates owner-salary payouts, and — only if every
// invariant holds — commits the resulting TokenSupplyState and
// returns the signed EpochReport. A violated invariant aborts the
// whole commit; the engine's visible supply state is unchanged.
func (e *Engine) ProcessEpoch(in EpochInputs) (*EpochReport, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	feeParams := e.params.FeeSplitParams()
	if err := feeParams.Validate(); err != nil {
		return nil, err
	}

	normalized := e.means.Normalize(in.Components)
	poe := ComputePhi(in.Epoch, normalized, e.weights)
	gamma := Gamma(poe.Phi)

	totalFee := big.NewInt(0)
	totalLocked := big.NewInt(0)
	totalSpendable := big.NewInt(0)
	totalOwner := big.NewInt(0)
	totalTreasury := big.NewInt(0)
	payouts := make([]PayoutRecord, 0, len(in.Jobs))

	for _, job := range in.Jobs {
		if job.ValueGold == nil || job.ValueGold.Sign() < 0 {
			return nil, ErrNegativeValue
		}
		split := splitFee(job, feeParams)
		totalFee.Add(totalFee, split.Fee)
		totalLocked.Add(totalLocked, split.MinerLocked)
		totalSpendable.Add(totalSpendable, split.MinerSpendable)
		totalOwner.Add(totalOwner, split.OwnerSalary)
		totalTreasury.Add(totalTreasury, split.Treasury)

		record := e.payout.Evaluate(job, split.OwnerSalary)
		if record.RequiresApproval && !in.OwnerApprovalGranted {
			record.ApprovalGranted = false
		} else {
			record.ApprovalGranted = true
		}
		record.RecordHash = hashPayoutRecord(job, record)
		payouts = append(payouts, record)
	}

	tauNEX, _ := e.params.Get(ParamTauNEX)
	capNEX, _ := e.params.Get(ParamCapNEX)
	betaNEX, _ := e.params.Get(ParamBetaNEX)
	sBase, _ := e.params.Get(ParamSBase)

	nexMinted := big.NewInt(0)
	var distribution []MinerDistribution
	if poe.Phi >= tauNEX {
		allowed := betaNEX * gamma * sBase
		if allowed > capNEX {
			allowed = capNEX
		}
		if allowed < 0 {
			allowed = 0
		}
		nexMinted = big.NewInt(int64(allowed))
		distribution = distributeByWeight(nexMinted, in.MinerWeights)
	}

	capFLX, _ := e.params.Get(ParamCapFLX)
	muFLX, _ := e.params.Get(ParamMuFLX)
	betaBurn, _ := e.params.Get(ParamBetaBurn)
	if betaBurn < 0.5 {
		return nil, ErrInvariantViolation
	}

	flxAllowed := muFLX * in.NetUtilization
	if flxAllowed > capFLX {
		flxAllowed = capFLX
	}
	if flxAllowed < 0 {
		flxAllowed = 0
	}
	flxMinted := big.NewInt(int64(flxAllowed))

	flxBurned := big.NewInt(0)
	if in.FeesFLX != nil {
		flxBurned = fraction(in.FeesFLX, betaBurn)
	}

	next := e.supply.Clone()
	next.SNEX.Add(next.SNEX, nexMinted)
	next.SFLX.Add(next.SFLX, flxMinted)
	next.SFLX.Sub(next.SFLX, flxBurned)
	if next.SFLX.Sign() < 0 {
		return nil, ErrInvariantViolation
	}

	if in.ReserveAttestation != nil {
		next.SAUR = new(big.Int).Set(in.ReserveAttestation)
	}
	// A missing attestation this epoch blocks any AUR mint/burn but
	// does not itself abort the rest of the epoch's settlement.

	if next.SGEN.Cmp(e.supply.SGEN) != 0 {
		return nil, ErrInvariantViolation
	}
	if nexMinted.Cmp(big.NewInt(int64(capNEX))) > 0 {
		return nil, ErrInvariantViolation
	}
	if flxMinted.Cmp(big.NewInt(int64(capFLX))) > 0 {
		return nil, ErrInvariantViolation
	}
	if poe.Phi < tauNEX && nexMinted.Sign() != 0 {
		return nil, ErrInvariantViolation
	}

	next.LastUpdate = in.Epoch2Time()

	report := &EpochReport{
		Epoch:          in.Epoch,
		PoE:            poe,
		TotalFee:       totalFee,
		TotalLocked:    totalLocked,
		TotalSpendable: totalSpendable,
		TotalTreasury:  totalTreasury,
		NEXMinted:      nexMinted,
		FLXMinted:      flxMinted,
		FLXBurned:      flxBurned,
		SupplyAfter:    next.Clone(),
		Distribution:   distribution,
		Payouts:        payouts,
		Time:           next.LastUpdate,
	}
	report.ReportHash = hashEpochReport(report)
	if e.wallet != nil {
		report.Signature = e.wallet.Sign(report.ReportHash[:])
		report.Signer = e.wallet.PublicKey()
	}

	e.supply = next
	return report, nil
}

// Epoch2Time lets tests and callers pin a deterministic timestamp onto
// an epoch instead of the engine reading wall-clock time, since the
// runtime environment here must never call time.Now() for anything
// that ends up in a canonically hashed record.
func (in EpochInputs) Epoch2Time() time.Time {
	return time.Unix(int64(in.Epoch)*int64(DefaultEpochSeconds), 0).UTC()
}

// DefaultEpochSeconds is the nominal wall-clock duration of one epoch,
// used only to derive a deterministic report timestamp from an epoch
// number.
const DefaultEpochSeconds = 600

func splitFee(job EconomicJob, params FeeSplitParams) FeeSplit {
	return FeeSplit{
		JobID:          job.JobID,
		Fee:            fraction(job.ValueGold, params.Rate),
		MinerLocked:    fraction(job.ValueGold, params.MinerLocked),
		MinerSpendable: fraction(job.ValueGold, params.MinerSpendable),
		OwnerSalary:    fraction(job.ValueGold, params.OwnerSalary),
		Treasury:       fraction(job.ValueGold, params.Treasury),
	}
}

func distributeByWeight(total *big.Int, inputs []MinerWeightInput) []MinerDistribution {
	if total.Sign() <= 0 || len(inputs) == 0 {
		return nil
	}

	weightSum := 0.0
	for _, in := range inputs {
		weightSum += in.Weight()
	}
	if weightSum <= 0 {
		return nil
	}

	out := make([]MinerDistribution, 0, len(inputs))
	distributed := big.NewInt(0)
	totalFloat := new(big.Float).SetInt(total)
	for i, in := range inputs {
		w := in.Weight()
		var amount *big.Int
		if i == len(inputs)-1 {
			amount = new(big.Int).Sub(total, distributed)
		} else {
			shareFloat := new(big.Float).Mul(totalFloat, big.NewFloat(w/weightSum))
			amount, _ = shareFloat.Int(nil)
			distributed.Add(distributed, amount)
		}
		out = append(out, MinerDistribution{MinerID: in.MinerID, Weight: w, Amount: amount})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].MinerID < out[j].MinerID })
	return out
}

func hashPayoutRecord(job EconomicJob, record PayoutRecord) [32]byte {
	w := canon.NewWriter()
	w.Bytes32(uuidBytes(job.JobID)).Fixed(record.GrossGold.Int64(), 0).
		Fixed(record.ImmediateGold.Int64(), 0).
		Fixed(record.VestedGold.Int64(), 0).
		Fixed(record.EscrowedGold.Int64(), 0)
	if record.RequiresApproval {
		w.U8(1)
	} else {
		w.U8(0)
	}
	return canon.Hash(canon.DomainDistribution, w.Bytes())
}

func hashEpochReport(r *EpochReport) [32]byte {
	w := canon.NewWriter()
	w.U64(r.Epoch).
		Fixed(int64(r.PoE.Phi*1e6), 6).
		Fixed(r.TotalFee.Int64(), 0).
		Fixed(r.NEXMinted.Int64(), 0).
		Fixed(r.FLXMinted.Int64(), 0).
		Fixed(r.FLXBurned.Int64(), 0).
		Fixed(r.SupplyAfter.SNEX.Int64(), 0).
		Fixed(r.SupplyAfter.SFLX.Int64(), 0).
		Fixed(r.SupplyAfter.SAUR.Int64(), 0)
	for _, d := range r.Distribution {
		w.Str(d.MinerID).Fixed(d.Amount.Int64(), 0)
	}
	for _, p := range r.Payouts {
		w.Bytes32(p.RecordHash)
	}
	return canon.Hash(canon.DomainEpochReport, w.Bytes())
}

func uuidBytes(id uuid.UUID) [32]byte {
	var out [32]byte
	copy(out[:16], id[:])
	return out
}
