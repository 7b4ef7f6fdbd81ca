// Copyright 2025 BPI Labs

package mempool

import "errors"

var (
	ErrRateLimited    = errors.New("mempool: sender rate limited")
	ErrOversize       = errors.New("mempool: envelope exceeds maximum size")
	ErrSealFailed     = errors.New("mempool: envelope seal failed")
	ErrNotFound       = errors.New("mempool: envelope not found")
	ErrStuckLeader    = errors.New("mempool: leader epoch key unavailable past stuck timeout")
	ErrOpenFailed     = errors.New("mempool: envelope failed to open under epoch or recovery key")
	ErrAlreadyRevealed = errors.New("mempool: envelope already revealed")
)
