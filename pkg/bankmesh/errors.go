// Copyright 2025 BPI Labs

package bankmesh

import "errors"

var (
	ErrPeerNotFound        = errors.New("bankmesh: peer not found")
	ErrPeerAlreadyJoined   = errors.New("bankmesh: peer already connected")
	ErrPeerSuspended       = errors.New("bankmesh: peer is suspended")
	ErrRequestNotFound     = errors.New("bankmesh: liquidity request not found")
	ErrNoOffers            = errors.New("bankmesh: no offers to accept")
	ErrSettlementNotFound  = errors.New("bankmesh: settlement not found")
	ErrInvalidTransition   = errors.New("bankmesh: settlement phase transition not permitted")
	ErrTerminalSettlement  = errors.New("bankmesh: settlement already in a terminal phase")
	ErrProposalNotFound    = errors.New("bankmesh: proposal not found")
	ErrProposalClosed      = errors.New("bankmesh: proposal is no longer accepting votes")
	ErrProposalNotApproved = errors.New("bankmesh: proposal has not met its approval threshold")
	ErrTimelockNotElapsed  = errors.New("bankmesh: proposal execution timelock has not elapsed")
	ErrInvalidSignature    = errors.New("bankmesh: control message signature invalid")
	ErrUnsealFailed        = errors.New("bankmesh: control message failed to decrypt")
)
