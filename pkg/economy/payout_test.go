// Copyright 2025 BPI Labs

package economy

import (
	"math/big"
	"testing"

	"github.com/google/uuid"
)

func TestPayoutPolicyEvaluateCapsAndSplits(t *testing.T) {
	policy := PayoutPolicy{
		MonthlyCapGold:          big.NewInt(1000),
		VestingPct:              0.3,
		EscrowPct:               0.2,
		GovernanceApprovalAbove: big.NewInt(500),
	}
	job := EconomicJob{JobID: uuid.New()}

	record := policy.Evaluate(job, big.NewInt(2000))
	if record.GrossGold.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected gross capped at 1000, got %v", record.GrossGold)
	}
	if record.VestedGold.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("expected vested=300, got %v", record.VestedGold)
	}
	if record.EscrowedGold.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("expected escrowed=200, got %v", record.EscrowedGold)
	}
	if record.ImmediateGold.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected immediate=500, got %v", record.ImmediateGold)
	}
	if !record.RequiresApproval {
		t.Fatalf("expected payout above approval threshold to require approval")
	}
}

func TestPayoutPolicyBelowApprovalThreshold(t *testing.T) {
	policy := DefaultPayoutPolicy()
	job := EconomicJob{JobID: uuid.New()}
	record := policy.Evaluate(job, big.NewInt(10))
	if record.RequiresApproval {
		t.Fatalf("small payout should not require approval")
	}
}
