// Copyright 2025 BPI Labs

package receipt

import (
	"fmt"
	"sync"
	"time"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/bpinet/bpci/pkg/merkle"
	"github.com/bpinet/bpci/pkg/walletcrypto"
	"github.com/google/uuid"
)

// KV is the small persistence interface the receipt WAL needs,
// satisfied by kvdb.KVAdapter.
type KV interface {
	Get(key []byte) ([]byte, error)
	Set(key, value []byte) error
}

// runEntry is the in-memory, mutex-guarded record for one active run;
// a single writer (begin_run/emit_step/end_run) owns this entry's
// state at a time.
type runEntry struct {
	mu  sync.Mutex
	run *Run
}

// Pipeline owns the in-memory run table and kvdb-backed WAL, and
// exposes begin_run/emit_step/end_run/aggregate.
type Pipeline struct {
	wal    KV
	wallet walletcrypto.Wallet
	signer string

	mu   sync.RWMutex
	runs map[uuid.UUID]*runEntry

	pendingMu sync.Mutex
	pending   []StepReceipt
	batchOpen time.Time
}

// NewPipeline constructs a Pipeline backed by wal for WAL persistence,
// signing every receipt with wallet under identity signer.
func NewPipeline(wal KV, wallet walletcrypto.Wallet, signer string) *Pipeline {
	return &Pipeline{
		wal:    wal,
		wallet: wallet,
		signer: signer,
		runs:   make(map[uuid.UUID]*runEntry),
	}
}

func runKey(runID uuid.UUID, seq uint64) []byte {
	return []byte(fmt.Sprintf("receipt:wal:%s:%020d", runID, seq))
}

// BeginRun starts a run from a canonical workload spec and records the
// spec's hash on the run as SpecHash; no separate seed value is derived.
func (p *Pipeline) BeginRun(spec []byte) (uuid.UUID, error) {
	runID := uuid.New()
	specHash := canon.Hash(canon.DomainPayload, spec)

	run := &Run{
		RunID:    runID,
		SpecHash: specHash,
		Status:   RunActive,
		NextSeq:  1,
	}

	p.mu.Lock()
	p.runs[runID] = &runEntry{run: run}
	p.mu.Unlock()

	return runID, nil
}

func (p *Pipeline) entry(runID uuid.UUID) (*runEntry, error) {
	p.mu.RLock()
	e, ok := p.runs[runID]
	p.mu.RUnlock()
	if !ok {
		return nil, ErrRunNotFound
	}
	return e, nil
}

// EmitStep appends a receipt to the run's chain, signing the
// canonical encoding of run id, step seq, prev receipt hash, kind,
// payload hash, witness digest and time (ReceiptID and Signer are not
// part of the signed message).
func (p *Pipeline) EmitStep(runID uuid.UUID, kind StepKind, payload, witness []byte) (*StepReceipt, error) {
	e, err := p.entry(runID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	run := e.run
	switch run.Status {
	case RunEnded:
		return nil, ErrRunEnded
	case RunPoisoned:
		return nil, ErrRunPoisoned
	}

	sr, err := p.buildAndSignReceipt(run, kind, payload, witness)
	if err != nil {
		return nil, err
	}

	if err := p.appendToChain(run, sr); err != nil {
		run.Status = RunPoisoned
		run.PoisonReason = PoisonBadPrevChain
		return nil, err
	}

	if kind == KindEnd {
		run.Status = RunEnded
	}

	p.enqueueForAggregation(*sr)
	return sr, nil
}

// EndRun produces the terminal receipt for a run (exactly-once
// semantics): once the run has ended, a repeat call returns the
// existing terminal receipt; status is not compared with the first one.
func (p *Pipeline) EndRun(runID uuid.UUID, status string) (*StepReceipt, error) {
	e, err := p.entry(runID)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.run.Status == RunEnded && len(e.run.Receipts) > 0 {
		last := e.run.Receipts[len(e.run.Receipts)-1]
		if last.Kind == KindEnd {
			e.mu.Unlock()
			return &last, nil
		}
	}
	e.mu.Unlock()

	return p.EmitStep(runID, KindEnd, []byte(status), nil)
}

func (p *Pipeline) buildAndSignReceipt(run *Run, kind StepKind, payload, witness []byte) (*StepReceipt, error) {
	seq := run.NextSeq
	prevHash := run.LastHash
	now := time.Now().UTC()

	payloadHash := canon.Hash(canon.DomainPayload, payload)
	witnessDigest := canon.Hash(canon.DomainWitness, witness)

	w := canon.NewWriter()
	w.Bytes32(uuidBytes(run.RunID)).U64(seq).Bytes32(prevHash).Str(string(kind)).
		Bytes32(payloadHash).Bytes32(witnessDigest).I64(now.UnixNano())
	signMsg := w.Bytes()

	sig := p.wallet.Sign(signMsg)

	sr := &StepReceipt{
		ReceiptID:       uuid.New(),
		RunID:           run.RunID,
		StepSeq:         seq,
		Kind:            kind,
		PayloadHash:     payloadHash,
		PrevReceiptHash: prevHash,
		WitnessDigest:   witnessDigest,
		Signer:          p.signer,
		Signature:       sig,
		Time:            now,
	}
	return sr, nil
}

// appendToChain validates the chain invariant, persists the receipt
// to the WAL, and updates the run's in-memory chain head.
func (p *Pipeline) appendToChain(run *Run, sr *StepReceipt) error {
	if len(run.Receipts) > 0 {
		last := run.Receipts[len(run.Receipts)-1]
		if sr.StepSeq != last.StepSeq+1 {
			return ErrOutOfOrder
		}
		if sr.PrevReceiptHash != receiptHash(last) {
			return ErrBadPrevChain
		}
	} else if sr.StepSeq != 1 {
		return ErrOutOfOrder
	}

	if p.wal != nil {
		encoded := encodeReceipt(sr)
		if err := p.wal.Set(runKey(run.RunID, sr.StepSeq), encoded); err != nil {
			return fmt.Errorf("write receipt wal: %w", err)
		}
	}

	run.Receipts = append(run.Receipts, *sr)
	run.NextSeq = sr.StepSeq + 1
	run.LastHash = receiptHash(*sr)
	return nil
}

func receiptHash(sr StepReceipt) [32]byte {
	w := canon.NewWriter()
	w.Bytes32(uuidBytes(sr.ReceiptID)).Bytes32(uuidBytes(sr.RunID)).U64(sr.StepSeq).
		Str(string(sr.Kind)).Bytes32(sr.PayloadHash).Bytes32(sr.PrevReceiptHash).
		Bytes32(sr.WitnessDigest).Str(sr.Signer).Blob(sr.Signature).I64(sr.Time.UnixNano())
	return canon.Hash(canon.DomainStepReceipt, w.Bytes())
}

func encodeReceipt(sr *StepReceipt) []byte {
	w := canon.NewWriter()
	w.Bytes32(uuidBytes(sr.ReceiptID)).Bytes32(uuidBytes(sr.RunID)).U64(sr.StepSeq).
		Str(string(sr.Kind)).Bytes32(sr.PayloadHash).Bytes32(sr.PrevReceiptHash).
		Bytes32(sr.WitnessDigest).Str(sr.Signer).Blob(sr.Signature).I64(sr.Time.UnixNano())
	return w.Bytes()
}

func uuidBytes(id uuid.UUID) [32]byte {
	var out [32]byte
	copy(out[:16], id[:])
	return out
}

func (p *Pipeline) enqueueForAggregation(sr StepReceipt) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if len(p.pending) == 0 {
		p.batchOpen = time.Now()
	}
	p.pending = append(p.pending, sr)
}

// Aggregate closes the currently open batch (bounded by policy.MaxReceipts
// or policy.MaxWindow, whichever is reached first by the caller's
// scheduling) into a Tx whose ReceiptsMerkleRoot commits to the
// canonical encoding of every included receipt.
func (p *Pipeline) Aggregate(policy BatchPolicy, submitter string) (*Tx, error) {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()

	if len(p.pending) == 0 {
		return nil, ErrEmptyBatch
	}

	n := len(p.pending)
	if n > policy.MaxReceipts {
		n = policy.MaxReceipts
	}
	batch := p.pending[:n]

	leaves := make([][]byte, len(batch))
	for i, sr := range batch {
		leafHash := canon.Hash(canon.DomainReceiptLeaf, encodeReceipt(&sr))
		leaves[i] = leafHash[:]
	}

	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, fmt.Errorf("build receipt merkle tree: %w", err)
	}

	var root [32]byte
	copy(root[:], tree.Root())

	w := canon.NewWriter()
	w.Bytes32(root).U64(uint64(len(batch))).Str(submitter)
	sig := p.wallet.Sign(w.Bytes())

	tx := &Tx{
		TxID:               uuid.New(),
		ReceiptsMerkleRoot: root,
		Count:              len(batch),
		Weight:             uint64(len(batch)),
		Submitter:          submitter,
		Time:               time.Now().UTC(),
		Signature:          sig,
		Receipts:           append([]StepReceipt{}, batch...),
	}

	p.pending = append([]StepReceipt{}, p.pending[n:]...)
	return tx, nil
}

// ShouldAggregate reports whether the currently open batch has
// crossed either bound of policy, for callers driving aggregation on
// a count-or-timer schedule.
func (p *Pipeline) ShouldAggregate(policy BatchPolicy) bool {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	if len(p.pending) == 0 {
		return false
	}
	if len(p.pending) >= policy.MaxReceipts {
		return true
	}
	return time.Since(p.batchOpen) >= policy.MaxWindow
}

// ProveInclusion returns a Merkle inclusion proof for a receipt inside
// a previously built Tx.
func ProveInclusion(tx *Tx, receiptID uuid.UUID) (*merkle.InclusionProof, error) {
	leaves := make([][]byte, len(tx.Receipts))
	var target int = -1
	for i, sr := range tx.Receipts {
		h := canon.Hash(canon.DomainReceiptLeaf, encodeReceipt(&sr))
		leaves[i] = h[:]
		if sr.ReceiptID == receiptID {
			target = i
		}
	}
	if target == -1 {
		return nil, merkle.ErrLeafNotFound
	}
	tree, err := merkle.BuildTree(leaves)
	if err != nil {
		return nil, err
	}
	return tree.GenerateProof(target)
}
