// Copyright 2025 BPI Labs
//
// The settlement state machine is a closed adjacency map rather than a
// switch of special cases: any transition not listed here is rejected
// regardless of caller intent, so adding a phase can never silently
// open an unintended edge.

package bankmesh

var settlementTransitions = map[SettlementPhase]map[SettlementPhase]bool{
	SettlementInitiated: {
		SettlementLocked: true,
		SettlementFailed: true,
	},
	SettlementLocked: {
		SettlementCleared:   true,
		SettlementInitiated: true, // safe-reverse: timeout releases escrow
		SettlementFailed:    true,
	},
	SettlementCleared: {
		SettlementCompleted: true,
		SettlementLocked:    true, // safe-reverse
		SettlementFailed:    true,
	},
	SettlementCompleted: {},
	SettlementFailed:    {},
}

// CanTransition reports whether a settlement may move from 'from' to
// 'to'.
func CanTransition(from, to SettlementPhase) bool {
	edges, ok := settlementTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// IsTerminal reports whether phase has no outgoing transitions.
func IsTerminal(phase SettlementPhase) bool {
	edges, ok := settlementTransitions[phase]
	return ok && len(edges) == 0
}
