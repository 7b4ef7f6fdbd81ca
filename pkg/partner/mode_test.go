// Copyright 2025 BPI Labs

package partner

import (
	"testing"
	"time"
)

func TestModeSwitchRequiresApprovalAndTimelock(t *testing.T) {
	m := NewModeController(ModeTestnet)
	now := time.Unix(1000, 0)

	m.RequestSwitch(ModeMainnet, 10*time.Minute, now)

	if _, err := m.Execute(now); err != ErrModeTransitionPending {
		t.Fatalf("expected ErrModeTransitionPending before approval, got %v", err)
	}

	if err := m.Approve(now.Add(time.Minute)); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if _, err := m.Execute(now.Add(5 * time.Minute)); err != ErrModeTransitionPending {
		t.Fatalf("expected ErrModeTransitionPending before timelock elapses, got %v", err)
	}

	mode, err := m.Execute(now.Add(12 * time.Minute))
	if err != nil {
		t.Fatalf("Execute after timelock: %v", err)
	}
	if mode != ModeMainnet {
		t.Fatalf("expected mode mainnet, got %v", mode)
	}
	if m.Current() != ModeMainnet {
		t.Fatalf("expected Current() mainnet, got %v", m.Current())
	}
}

func TestApproveWithNoPendingSwitch(t *testing.T) {
	m := NewModeController(ModeTestnet)
	if err := m.Approve(time.Unix(1000, 0)); err != ErrModeTransitionPending {
		t.Fatalf("expected ErrModeTransitionPending, got %v", err)
	}
}
