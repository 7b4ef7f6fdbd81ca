// Copyright 2025 BPI Labs

package consensus

import "errors"

var (
	// ErrNotActiveValidator is returned when a vote or proposal comes
	// from a validator id not currently in the active set.
	ErrNotActiveValidator = errors.New("consensus: validator not active")
	// ErrWrongRound is returned when a vote targets a height/round the
	// engine is no longer (or not yet) processing.
	ErrWrongRound = errors.New("consensus: vote for wrong height/round")
	// ErrDuplicateVote is returned when a validator repeats its vote for
	// the same (height, round, stage) with the same header hash.
	ErrDuplicateVote = errors.New("consensus: duplicate vote")
	// ErrEquivocation is returned when a validator casts two distinct
	// votes for the same (height, round, stage). For PREPARE votes both
	// votes are sent as EquivocationEvidence on Engine.Evidence; a
	// conflicting COMMIT vote is rejected without evidence.
	ErrEquivocation = errors.New("consensus: equivocating vote")
	// ErrNotLeader is returned when a proposal arrives from a validator
	// that is not the computed leader for the round.
	ErrNotLeader = errors.New("consensus: proposal from non-leader")
	// ErrInsufficientWeight is returned when a commit is assembled
	// without reaching the two-thirds weighted threshold.
	ErrInsufficientWeight = errors.New("consensus: insufficient voting weight")
	// ErrInvalidSignature is returned when a vote's signature fails
	// BLS verification against the claimed validator's public key.
	ErrInvalidSignature = errors.New("consensus: invalid signature")
	// ErrStageClosed is returned when a vote arrives for a stage the
	// round has already moved past.
	ErrStageClosed = errors.New("consensus: stage already closed")
	// ErrNoProposal is returned when finalize is attempted before a
	// proposal has been accepted for the round.
	ErrNoProposal = errors.New("consensus: no accepted proposal for round")
)
