// Copyright 2025 BPI Labs
//
// Package receipt implements the deterministic execution & receipt
// pipeline: signed, hash-chained step-receipts produced inside a run,
// aggregated into Merkle-rooted transactions.

package receipt

import (
	"time"

	"github.com/google/uuid"
)

// StepKind distinguishes an ordinary observed step from the run's
// terminal receipt.
type StepKind string

const (
	KindStep StepKind = "step"
	KindEnd  StepKind = "end"
)

// RunStatus tracks a run's lifecycle; once Poisoned, no further writes
// are accepted and the WAL segment is fenced for forensic analysis.
type RunStatus string

const (
	RunActive   RunStatus = "active"
	RunEnded    RunStatus = "ended"
	RunPoisoned RunStatus = "poisoned"
)

// PoisonReason records why a run was fenced.
type PoisonReason string

const (
	PoisonBadPrevChain PoisonReason = "bad_prev_chain"
)

// StepReceipt is one signed, chained record of an observable action
// inside a run.
type StepReceipt struct {
	ReceiptID       uuid.UUID
	RunID           uuid.UUID
	StepSeq         uint64
	Kind            StepKind
	PayloadHash     [32]byte
	PrevReceiptHash [32]byte
	WitnessDigest   [32]byte
	Signer          string
	Signature       []byte
	Time            time.Time
}

// Run tracks one deterministic workload execution: its receipt chain,
// status, and poison state if fenced.
type Run struct {
	RunID        uuid.UUID
	SpecHash     [32]byte
	Status       RunStatus
	PoisonReason PoisonReason
	NextSeq      uint64
	LastHash     [32]byte
	Receipts     []StepReceipt
}

// Tx aggregates a contiguous batch of receipts into a Merkle-rooted
// transaction.
type Tx struct {
	TxID              uuid.UUID
	ReceiptsMerkleRoot [32]byte
	Count             int
	Weight            uint64
	Submitter         string
	Time              time.Time
	Signature         []byte
	Receipts          []StepReceipt
}

// BatchPolicy bounds how many receipts (or how much time) accumulate
// before aggregate() closes a batch.
type BatchPolicy struct {
	MaxReceipts int
	MaxWindow   time.Duration
}

// DefaultBatchPolicy matches the spec's default N=1000 or T=10s.
func DefaultBatchPolicy() BatchPolicy {
	return BatchPolicy{MaxReceipts: 1000, MaxWindow: 10 * time.Second}
}
