// Copyright 2025 BPI Labs

package economy

import "testing"

func TestDefaultGovernanceParamsFeeSplitSumsToRate(t *testing.T) {
	p := DefaultGovernanceParams()
	if err := p.FeeSplitParams().Validate(); err != nil {
		t.Fatalf("default fee split should validate, got %v", err)
	}
}

func TestUpdateParamRejectsOutOfBounds(t *testing.T) {
	p := DefaultGovernanceParams()
	if err := p.UpdateParam(ParamBetaBurn, 0.1); err != ErrParamOutOfBounds {
		t.Fatalf("expected ErrParamOutOfBounds for beta_burn below its 0.5 floor, got %v", err)
	}
	if err := p.UpdateParam(ParamBetaBurn, 0.75); err != nil {
		t.Fatalf("expected in-bound update to succeed, got %v", err)
	}
	v, _ := p.Get(ParamBetaBurn)
	if v != 0.75 {
		t.Fatalf("expected updated value to persist, got %v", v)
	}
}

func TestUpdateParamRejectsUnknownKey(t *testing.T) {
	p := DefaultGovernanceParams()
	if err := p.UpdateParam(ParamKey("economy.nonexistent"), 1); err != ErrUnknownParam {
		t.Fatalf("expected ErrUnknownParam, got %v", err)
	}
}

func TestFeeSplitValidateRejectsMismatch(t *testing.T) {
	f := FeeSplitParams{Rate: 0.01, MinerLocked: 0.002, MinerSpendable: 0.003, OwnerSalary: 0.002, Treasury: 0.002}
	if err := f.Validate(); err != ErrInvalidFeeSplit {
		t.Fatalf("expected ErrInvalidFeeSplit for shares summing below rate, got %v", err)
	}
}
