// Copyright 2025 BPI Labs
//
// Governance parameter vectors, grounded on the ParamKey/bounds
// convention used for native governance parameter updates: every
// tunable is a named key with a declared [Min,Max] bound, so an update
// can be validated generically instead of trusting each caller.

package economy

import "sync"

// ParamKey names one governance-tunable economy parameter.
type ParamKey string

const (
	ParamTauNEX      ParamKey = "economy.phi.tauNex"
	ParamCapNEX      ParamKey = "economy.nex.capPerEpoch"
	ParamBetaNEX     ParamKey = "economy.nex.beta"
	ParamSBase       ParamKey = "economy.nex.sBase"
	ParamCapFLX      ParamKey = "economy.flx.capPerEpoch"
	ParamMuFLX       ParamKey = "economy.flx.mu"
	ParamBetaBurn    ParamKey = "economy.flx.betaBurn"
	ParamFeeRate     ParamKey = "economy.fee.rate"
	ParamFeeLocked   ParamKey = "economy.fee.minerLocked"
	ParamFeeSpend    ParamKey = "economy.fee.minerSpendable"
	ParamFeeOwner    ParamKey = "economy.fee.ownerSalary"
	ParamFeeTreasury ParamKey = "economy.fee.treasury"
)

// Bound is the inclusive [Min,Max] range a parameter's value must stay
// within after any governance update.
type Bound struct {
	Min float64
	Max float64
}

func (b Bound) contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// GovernanceParams holds the current value of every bounded economy
// parameter plus the bound itself, so UpdateParam can reject an
// out-of-range change generically regardless of which parameter it
// targets.
type GovernanceParams struct {
	mu     sync.RWMutex
	values map[ParamKey]float64
	bounds map[ParamKey]Bound
}

// DefaultGovernanceParams returns the genesis parameter vector: β_burn
// at its floor of 0.5, a 1% fee rate split 0.2/0.3/0.2/0.3 across
// locked/spendable/owner/treasury exactly as the fee-split invariant
// requires, and permissive (but bounded) caps for NEX/FLX emission.
func DefaultGovernanceParams() *GovernanceParams {
	p := &GovernanceParams{
		values: make(map[ParamKey]float64),
		bounds: make(map[ParamKey]Bound),
	}
	set := func(key ParamKey, value float64, bound Bound) {
		p.values[key] = value
		p.bounds[key] = bound
	}
	set(ParamTauNEX, 0.5, Bound{Min: 0, Max: 1})
	set(ParamCapNEX, 1_000_000, Bound{Min: 0, Max: 1e12})
	set(ParamBetaNEX, 0.1, Bound{Min: 0, Max: 1})
	set(ParamSBase, 10_000_000, Bound{Min: 0, Max: 1e15})
	set(ParamCapFLX, 500_000, Bound{Min: 0, Max: 1e12})
	set(ParamMuFLX, 0.2, Bound{Min: 0, Max: 1})
	set(ParamBetaBurn, 0.5, Bound{Min: 0.5, Max: 1})
	set(ParamFeeRate, 0.01, Bound{Min: 0, Max: 0.10})
	set(ParamFeeLocked, 0.002, Bound{Min: 0, Max: 0.10})
	set(ParamFeeSpend, 0.003, Bound{Min: 0, Max: 0.10})
	set(ParamFeeOwner, 0.002, Bound{Min: 0, Max: 0.10})
	set(ParamFeeTreasury, 0.003, Bound{Min: 0, Max: 0.10})
	return p
}

// Get returns a parameter's current value.
func (p *GovernanceParams) Get(key ParamKey) (float64, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	v, ok := p.values[key]
	return v, ok
}

// UpdateParam applies a governance-approved change to key, rejecting
// it if the value falls outside the parameter's declared bound.
func (p *GovernanceParams) UpdateParam(key ParamKey, value float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	bound, ok := p.bounds[key]
	if !ok {
		return ErrUnknownParam
	}
	if !bound.contains(value) {
		return ErrParamOutOfBounds
	}
	p.values[key] = value
	return nil
}

// FeeSplitParams is a snapshot of the four fee-split fractions (each
// expressed as a fraction of job value, not of the fee itself) plus
// the fee rate they must sum to.
type FeeSplitParams struct {
	Rate           float64
	MinerLocked    float64
	MinerSpendable float64
	OwnerSalary    float64
	Treasury       float64
}

// Validate checks that the four shares sum to Rate within floating
// point tolerance, as required by the data model's fee-split
// invariant.
func (f FeeSplitParams) Validate() error {
	const epsilon = 1e-9
	sum := f.MinerLocked + f.MinerSpendable + f.OwnerSalary + f.Treasury
	if diff := sum - f.Rate; diff > epsilon || diff < -epsilon {
		return ErrInvalidFeeSplit
	}
	return nil
}

// FeeSplitParams reads the current fee-split vector out of p.
func (p *GovernanceParams) FeeSplitParams() FeeSplitParams {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return FeeSplitParams{
		Rate:           p.values[ParamFeeRate],
		MinerLocked:    p.values[ParamFeeLocked],
		MinerSpendable: p.values[ParamFeeSpend],
		OwnerSalary:    p.values[ParamFeeOwner],
		Treasury:       p.values[ParamFeeTreasury],
	}
}
