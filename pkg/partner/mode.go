// Copyright 2025 BPI Labs
//
// Auction mode switching (testnet <-> mainnet) follows the same
// approve-then-timelock shape as pkg/economy's owner-salary
// governance gate: a switch is requested, requires an explicit
// governance approval, and only takes effect once its T_exec timelock
// has elapsed after approval.

package partner

import "time"

// ModeSwitch is a pending or resolved auction-mode transition.
type ModeSwitch struct {
	From        Mode
	To          Mode
	RequestedAt time.Time
	TExec       time.Duration
	Approved    bool
	ApprovedAt  time.Time
}

// ModeController gates transitions between testnet and mainnet
// auction modes. It is not safe for concurrent use by itself; callers
// serialize access the same way Coordinator does for the rest of PC
// state.
type ModeController struct {
	current Mode
	pending *ModeSwitch
}

// NewModeController starts in the given mode with no pending switch.
func NewModeController(initial Mode) *ModeController {
	return &ModeController{current: initial}
}

// Current returns the active auction mode.
func (m *ModeController) Current() Mode {
	return m.current
}

// RequestSwitch opens a pending switch to a new mode, replacing any
// earlier unresolved request.
func (m *ModeController) RequestSwitch(to Mode, tExec time.Duration, now time.Time) *ModeSwitch {
	m.pending = &ModeSwitch{From: m.current, To: to, RequestedAt: now, TExec: tExec}
	cp := *m.pending
	return &cp
}

// Approve marks the pending switch governance-approved, starting its
// timelock.
func (m *ModeController) Approve(now time.Time) error {
	if m.pending == nil {
		return ErrModeTransitionPending
	}
	m.pending.Approved = true
	m.pending.ApprovedAt = now
	return nil
}

// Execute applies the pending switch once approved and its timelock
// has elapsed, returning the new active mode.
func (m *ModeController) Execute(now time.Time) (Mode, error) {
	if m.pending == nil || !m.pending.Approved {
		return m.current, ErrModeTransitionPending
	}
	if now.Before(m.pending.ApprovedAt.Add(m.pending.TExec)) {
		return m.current, ErrModeTransitionPending
	}
	m.current = m.pending.To
	m.pending = nil
	return m.current, nil
}
