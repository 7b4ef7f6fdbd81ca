// Copyright 2025 BPI Labs

package economy

import "errors"

var (
	ErrInvalidWeights        = errors.New("economy: PoE weights must sum to 1")
	ErrInvalidFeeSplit       = errors.New("economy: fee split shares must sum to the fee rate")
	ErrParamOutOfBounds      = errors.New("economy: governance parameter out of bounds")
	ErrUnknownParam          = errors.New("economy: unknown governance parameter")
	ErrInvariantViolation    = errors.New("economy: epoch commit would violate a supply invariant")
	ErrReserveAttestationGap = errors.New("economy: AUR mint/burn blocked, no reserve attestation this epoch")
	ErrNegativeValue         = errors.New("economy: job value_gold must be non-negative")
)
