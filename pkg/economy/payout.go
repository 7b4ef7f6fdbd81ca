// Copyright 2025 BPI Labs

package economy

import "math/big"

// PayoutPolicy is the owner-salary guardrail evaluated on every
// payout: a monthly cap, a vesting fraction deferred to schedule, an
// escrow fraction withheld, and an optional governance-approval gate
// before any of the payout is released immediately.
type PayoutPolicy struct {
	MonthlyCapGold          *big.Int
	VestingPct              float64
	EscrowPct               float64
	GovernanceApprovalAbove *big.Int // nil means never require approval
}

// DefaultPayoutPolicy is a conservative starting guardrail: a third
// vested, a fifth escrowed, approval required above a modest cap.
func DefaultPayoutPolicy() PayoutPolicy {
	return PayoutPolicy{
		MonthlyCapGold:          big.NewInt(1_000_000),
		VestingPct:              0.33,
		EscrowPct:               0.20,
		GovernanceApprovalAbove: big.NewInt(100_000),
	}
}

// Evaluate splits a gross owner-salary payout into immediate, vested,
// and escrowed portions per the policy, capping the gross amount at
// MonthlyCapGold and flagging whether governance approval is needed
// before the immediate portion can be released.
func (p PayoutPolicy) Evaluate(jobID EconomicJob, gross *big.Int) PayoutRecord {
	capped := new(big.Int).Set(gross)
	if p.MonthlyCapGold != nil && capped.Cmp(p.MonthlyCapGold) > 0 {
		capped = new(big.Int).Set(p.MonthlyCapGold)
	}

	vested := fraction(capped, p.VestingPct)
	escrowed := fraction(capped, p.EscrowPct)
	immediate := new(big.Int).Sub(capped, vested)
	immediate.Sub(immediate, escrowed)
	if immediate.Sign() < 0 {
		immediate = big.NewInt(0)
	}

	requiresApproval := p.GovernanceApprovalAbove != nil && capped.Cmp(p.GovernanceApprovalAbove) > 0

	return PayoutRecord{
		JobID:            jobID.JobID,
		GrossGold:        capped,
		ImmediateGold:    immediate,
		VestedGold:       vested,
		EscrowedGold:     escrowed,
		RequiresApproval: requiresApproval,
	}
}

// fraction computes floor(amount * pct) using integer arithmetic over
// a fixed-point representation of pct to avoid floating point drift
// in balance-sheet amounts.
func fraction(amount *big.Int, pct float64) *big.Int {
	const scale = 1_000_000
	numerator := new(big.Int).Mul(amount, big.NewInt(int64(pct*scale)))
	return numerator.Div(numerator, big.NewInt(scale))
}
