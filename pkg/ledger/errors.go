// Copyright 2025 BPI Labs
//
// Package ledger persists finalized blocks and periodically anchors
// ledger state to external targets. Operations return one of these
// sentinels rather than a bare nil, so a caller can distinguish
// "not found yet" from "something is actually broken".

package ledger

import "errors"

var (
	// ErrNotFound is returned when a requested block does not exist.
	ErrNotFound = errors.New("ledger: block not found")

	// ErrChainBreak is returned when an appended block's height or
	// prev_hash does not chain from the current head.
	ErrChainBreak = errors.New("ledger: chain break")

	// ErrInvalidCommit is returned when a block's BLS commit header
	// hash does not match its own computed header hash.
	ErrInvalidCommit = errors.New("ledger: invalid commit")

	// ErrAnchorTargetUnreachable is returned by the anchor manager
	// after exhausting retries against an AnchorTarget.
	ErrAnchorTargetUnreachable = errors.New("ledger: anchor target unreachable")

	// ErrNoEligibleBlocks is returned when the anchor scheduler finds
	// nothing new to anchor since the last cadence tick.
	ErrNoEligibleBlocks = errors.New("ledger: no eligible blocks to anchor")
)
