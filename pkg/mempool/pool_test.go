// Copyright 2025 BPI Labs

package mempool

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestPool(t *testing.T, rateLimit int, stuckTimeout time.Duration) *Pool {
	t.Helper()
	epochs, err := NewEpochManager(time.Hour)
	if err != nil {
		t.Fatalf("NewEpochManager: %v", err)
	}
	return NewPool(epochs, rateLimit, time.Minute, stuckTimeout)
}

func TestSubmitPullRevealLifecycle(t *testing.T) {
	p := newTestPool(t, DefaultRateLimit, DefaultStuckTimeout)

	tx := []byte("transfer 10 GEN to alice")
	ack, err := p.Submit(tx, "bob")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !ack.Accepted {
		t.Fatalf("expected accepted ack, got %+v", ack)
	}

	pulled := p.PullForLeader(10)
	if len(pulled) != 1 {
		t.Fatalf("expected 1 pulled envelope, got %d", len(pulled))
	}
	if pulled[0].Status != EnvelopePulled {
		t.Fatalf("expected status pulled, got %v", pulled[0].Status)
	}

	plaintext, err := p.Reveal(ack.TxID)
	if err != nil {
		t.Fatalf("Reveal: %v", err)
	}
	if !bytes.Equal(plaintext, tx) {
		t.Fatalf("revealed plaintext mismatch: got %q want %q", plaintext, tx)
	}

	if _, err := p.Reveal(ack.TxID); err != ErrAlreadyRevealed {
		t.Fatalf("expected ErrAlreadyRevealed on second reveal, got %v", err)
	}
}

func TestSubmitRejectsOversizeEnvelope(t *testing.T) {
	p := newTestPool(t, DefaultRateLimit, DefaultStuckTimeout)
	huge := make([]byte, MaxEnvelopeSize+1)
	ack, err := p.Submit(huge, "bob")
	if err != ErrOversize {
		t.Fatalf("expected ErrOversize, got %v", err)
	}
	if ack.Accepted {
		t.Fatalf("expected rejected ack")
	}
}

func TestSubmitRateLimitsSender(t *testing.T) {
	p := newTestPool(t, 3, DefaultStuckTimeout)
	for i := 0; i < 3; i++ {
		ack, err := p.Submit([]byte("tx"), "carol")
		if err != nil || !ack.Accepted {
			t.Fatalf("submission %d should be accepted, got ack=%+v err=%v", i, ack, err)
		}
	}
	ack, err := p.Submit([]byte("tx"), "carol")
	if err != ErrRateLimited {
		t.Fatalf("expected ErrRateLimited on 4th submission, got %v", err)
	}
	if ack.Accepted {
		t.Fatalf("expected rejected ack on rate-limited submission")
	}

	// A different sender is unaffected by carol's limit.
	ack, err = p.Submit([]byte("tx"), "dave")
	if err != nil || !ack.Accepted {
		t.Fatalf("dave's submission should be accepted, got ack=%+v err=%v", ack, err)
	}
}

func TestRevealFallsBackToRecoveryKeyPastStuckTimeout(t *testing.T) {
	p := newTestPool(t, DefaultRateLimit, time.Millisecond)

	tx := []byte("payload needing recovery")
	ack, err := p.Submit(tx, "erin")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Simulate the leader's epoch key becoming unavailable by dropping
	// it from the epoch manager entirely, leaving only the recovery
	// seal as a viable path.
	p.mu.Lock()
	env := p.envelopes[ack.TxID]
	p.mu.Unlock()
	p.epochs.mu.Lock()
	delete(p.epochs.retired, env.EpochID)
	if p.epochs.current != nil && p.epochs.current.EpochID == env.EpochID {
		p.epochs.current = nil
	}
	p.epochs.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	plaintext, err := p.Reveal(ack.TxID)
	if err != nil {
		t.Fatalf("expected recovery-path reveal to succeed, got %v", err)
	}
	if !bytes.Equal(plaintext, tx) {
		t.Fatalf("recovered plaintext mismatch: got %q want %q", plaintext, tx)
	}
}

func TestRevealUnknownTxID(t *testing.T) {
	p := newTestPool(t, DefaultRateLimit, DefaultStuckTimeout)
	if _, err := p.Reveal(uuid.New()); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRotateEpochEvictsStuckPending(t *testing.T) {
	p := newTestPool(t, DefaultRateLimit, time.Millisecond)

	ack, err := p.Submit([]byte("tx"), "frank")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	time.Sleep(2 * time.Millisecond)

	if err := p.RotateEpoch(); err != nil {
		t.Fatalf("RotateEpoch: %v", err)
	}

	p.mu.Lock()
	_, stillThere := p.envelopes[ack.TxID]
	p.mu.Unlock()
	if stillThere {
		t.Fatalf("expected stuck pending envelope to be evicted after rotation")
	}
}

func TestPullForLeaderOnlyReturnsCurrentEpochPending(t *testing.T) {
	p := newTestPool(t, DefaultRateLimit, DefaultStuckTimeout)

	ack, err := p.Submit([]byte("tx"), "gail")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := p.RotateEpoch(); err != nil {
		t.Fatalf("RotateEpoch: %v", err)
	}

	pulled := p.PullForLeader(10)
	if len(pulled) != 0 {
		t.Fatalf("expected 0 pulled envelopes after rotation stranded the old epoch, got %d", len(pulled))
	}

	// The envelope is still revealable by its original (now retired) epoch key.
	plaintext, err := p.Reveal(ack.TxID)
	if err != nil {
		t.Fatalf("Reveal after rotation: %v", err)
	}
	if string(plaintext) != "tx" {
		t.Fatalf("unexpected plaintext: %q", plaintext)
	}
}
