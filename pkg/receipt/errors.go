// Copyright 2025 BPI Labs

package receipt

import "errors"

var (
	ErrRunNotFound   = errors.New("receipt: run not found")
	ErrRunEnded      = errors.New("receipt: run already ended")
	ErrRunPoisoned   = errors.New("receipt: run poisoned")
	ErrBadPrevChain  = errors.New("receipt: prev_receipt_hash chain broken")
	ErrEmptyBatch    = errors.New("receipt: no eligible receipts to aggregate")
	ErrOutOfOrder    = errors.New("receipt: step_seq not strictly increasing")
)
