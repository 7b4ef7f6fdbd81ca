// Copyright 2025 BPI Labs

package partner

import "errors"

var (
	ErrChainNotFound          = errors.New("partner: chain not found")
	ErrChainAlreadyRegistered = errors.New("partner: chain already registered")
	ErrSharePctOutOfRange     = errors.New("partner: share_pct must be within [0, 25]")
	ErrPartnershipNotFound    = errors.New("partner: partnership not found")
	ErrPartnershipNotMutual   = errors.New("partner: partnership requires both signatures before inclusion in distributions")
	ErrAggregateShareExceeded = errors.New("partner: aggregate partner share would exceed governance-set cap")
	ErrNegativeRevenue        = errors.New("partner: window revenue must be non-negative")
	ErrDistributionExists     = errors.New("partner: window already has a distribution record")
	ErrModeTransitionPending  = errors.New("partner: mode switch is pending governance approval and timelock")
	ErrNoAdapter              = errors.New("partner: no adapter registered for chain")
)
