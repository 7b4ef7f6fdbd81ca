// Copyright 2025 BPI Labs

package receipt

import (
	"errors"
	"testing"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/bpinet/bpci/pkg/merkle"
	"github.com/bpinet/bpci/pkg/walletcrypto"
)

type memKV struct {
	data map[string][]byte
}

func newMemKV() *memKV { return &memKV{data: make(map[string][]byte)} }

func (m *memKV) Get(key []byte) ([]byte, error) { return m.data[string(key)], nil }
func (m *memKV) Set(key, value []byte) error {
	m.data[string(key)] = append([]byte{}, value...)
	return nil
}

func newTestPipeline(t *testing.T) *Pipeline {
	t.Helper()
	w, err := walletcrypto.Generate()
	if err != nil {
		t.Fatalf("generate wallet: %v", err)
	}
	return NewPipeline(newMemKV(), w, "node-1")
}

func TestRunLifecycleAndChain(t *testing.T) {
	p := newTestPipeline(t)

	runID, err := p.BeginRun([]byte("workload-spec"))
	if err != nil {
		t.Fatalf("begin run: %v", err)
	}

	sr1, err := p.EmitStep(runID, KindStep, []byte("payload-1"), nil)
	if err != nil {
		t.Fatalf("emit step 1: %v", err)
	}
	if sr1.StepSeq != 1 {
		t.Errorf("expected step_seq 1, got %d", sr1.StepSeq)
	}

	sr2, err := p.EmitStep(runID, KindStep, []byte("payload-2"), nil)
	if err != nil {
		t.Fatalf("emit step 2: %v", err)
	}
	if sr2.PrevReceiptHash != receiptHash(*sr1) {
		t.Errorf("chain broken: prev hash does not match sr1")
	}

	end, err := p.EndRun(runID, "ok")
	if err != nil {
		t.Fatalf("end run: %v", err)
	}
	if end.Kind != KindEnd {
		t.Errorf("expected terminal receipt kind end")
	}

	if _, err := p.EmitStep(runID, KindStep, []byte("late"), nil); !errors.Is(err, ErrRunEnded) {
		t.Errorf("expected ErrRunEnded after terminal receipt, got %v", err)
	}
}

func TestEndRunIsIdempotent(t *testing.T) {
	p := newTestPipeline(t)
	runID, _ := p.BeginRun([]byte("spec"))
	end1, err := p.EndRun(runID, "ok")
	if err != nil {
		t.Fatalf("end run: %v", err)
	}
	end2, err := p.EndRun(runID, "ok")
	if err != nil {
		t.Fatalf("end run (second): %v", err)
	}
	if end1.ReceiptID != end2.ReceiptID {
		t.Errorf("expected idempotent terminal receipt, got two distinct receipts")
	}
}

func TestAggregateBuildsVerifiableMerkleRoot(t *testing.T) {
	p := newTestPipeline(t)
	runID, _ := p.BeginRun([]byte("spec"))
	p.EmitStep(runID, KindStep, []byte("p1"), nil)
	p.EmitStep(runID, KindStep, []byte("p2"), nil)
	end, err := p.EndRun(runID, "ok")
	if err != nil {
		t.Fatalf("end run: %v", err)
	}

	tx, err := p.Aggregate(DefaultBatchPolicy(), "submitter-1")
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if tx.Count != 3 {
		t.Errorf("expected 3 receipts in tx, got %d", tx.Count)
	}

	proof, err := ProveInclusion(tx, end.ReceiptID)
	if err != nil {
		t.Fatalf("prove inclusion: %v", err)
	}
	digest := canon.Hash(canon.DomainReceiptLeaf, encodeReceipt(end))
	ok, err := merkle.VerifyProof(digest[:], proof, tx.ReceiptsMerkleRoot[:])
	if err != nil {
		t.Fatalf("verify proof: %v", err)
	}
	if !ok {
		t.Errorf("expected inclusion proof to verify")
	}
}

func TestAggregateEmptyBatch(t *testing.T) {
	p := newTestPipeline(t)
	if _, err := p.Aggregate(DefaultBatchPolicy(), "submitter-1"); !errors.Is(err, ErrEmptyBatch) {
		t.Errorf("expected ErrEmptyBatch, got %v", err)
	}
}
