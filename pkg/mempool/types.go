// Copyright 2025 BPI Labs
//
// Package mempool implements the leader-encrypted, rate-limited
// transaction pool: epoch-keyed envelopes sealed with X25519+AEAD via
// golang.org/x/crypto/nacl/box, pulled by the current leader and
// revealed after proposal.

package mempool

import (
	"time"

	"github.com/google/uuid"
)

// EnvelopeStatus tracks a submitted envelope's lifecycle.
type EnvelopeStatus string

const (
	EnvelopePending EnvelopeStatus = "pending"
	EnvelopePulled  EnvelopeStatus = "pulled"
	EnvelopeRevealed EnvelopeStatus = "revealed"
	EnvelopeEvicted EnvelopeStatus = "evicted"
)

// Envelope is a sealed transaction blob keyed to a specific epoch. The
// same plaintext is additionally sealed to the pool's recovery key so
// reveal can still succeed if the leader's own epoch key is lost,
// without that recovery path being able to open envelopes sealed to
// keys it doesn't hold.
type Envelope struct {
	TxID           uuid.UUID
	EpochID        uint64
	Submitter      string
	Sealed         []byte // nacl/box sealed-anonymous ciphertext, epoch key
	SealedRecovery []byte // nacl/box sealed-anonymous ciphertext, recovery key
	Status         EnvelopeStatus
	CreatedAt      time.Time
}

// Ack is the synchronous result of a submit call.
type Ack struct {
	Accepted bool
	Reason   string
	TxID     uuid.UUID
}

const (
	// DefaultRateLimit is the per-sender sliding-window submission cap.
	DefaultRateLimit = 100
	// DefaultRateWindow is the sliding window duration.
	DefaultRateWindow = time.Minute
	// DefaultEpochInterval is how often the leader epoch key rotates.
	DefaultEpochInterval = 5 * time.Minute
	// DefaultStuckTimeout is how long an envelope waits for its
	// leader's epoch key before reveal falls back to the recovery key.
	DefaultStuckTimeout = 10 * time.Minute
	// MaxEnvelopeSize bounds a single sealed envelope.
	MaxEnvelopeSize = 1 << 20
)
