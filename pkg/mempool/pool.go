// Copyright 2025 BPI Labs

package mempool

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Pool is the leader-encrypted transaction mempool: single writer
// over its envelope table (guarded by mu), consulted by the leader's
// pull and by reveal after proposal.
type Pool struct {
	mu        sync.Mutex
	envelopes map[uuid.UUID]*Envelope

	epochs      *EpochManager
	rateLimiter *SlidingWindow

	stuckTimeout time.Duration
}

// NewPool constructs a Pool with the given epoch manager and
// per-sender sliding-window rate limit.
func NewPool(epochs *EpochManager, rateLimit int, rateWindow, stuckTimeout time.Duration) *Pool {
	return &Pool{
		envelopes:    make(map[uuid.UUID]*Envelope),
		epochs:       epochs,
		rateLimiter:  NewSlidingWindow(rateLimit, rateWindow),
		stuckTimeout: stuckTimeout,
	}
}

// Submit seals txPlaintext to the current epoch's public key and
// admits it, subject to the sender's rate limit and a size cap.
func (p *Pool) Submit(txPlaintext []byte, submitter string) (Ack, error) {
	if len(txPlaintext) > MaxEnvelopeSize {
		return Ack{Accepted: false, Reason: ErrOversize.Error()}, ErrOversize
	}
	if !p.rateLimiter.Allow(submitter, time.Now()) {
		return Ack{Accepted: false, Reason: ErrRateLimited.Error()}, ErrRateLimited
	}

	epoch := p.epochs.Current()
	sealed, err := Seal(txPlaintext, epoch.PublicKey)
	if err != nil {
		return Ack{Accepted: false, Reason: ErrSealFailed.Error()}, ErrSealFailed
	}
	sealedRecovery, err := Seal(txPlaintext, p.epochs.RecoveryPublicKey())
	if err != nil {
		return Ack{Accepted: false, Reason: ErrSealFailed.Error()}, ErrSealFailed
	}

	env := &Envelope{
		TxID:           uuid.New(),
		EpochID:        epoch.EpochID,
		Submitter:      submitter,
		Sealed:         sealed,
		SealedRecovery: sealedRecovery,
		Status:         EnvelopePending,
		CreatedAt:      time.Now(),
	}

	p.mu.Lock()
	p.envelopes[env.TxID] = env
	p.mu.Unlock()

	return Ack{Accepted: true, TxID: env.TxID}, nil
}

// PullForLeader returns up to maxN pending envelopes sealed to the
// current epoch's key, marking them pulled. It takes no leader
// identity: whoever calls it receives the current epoch's envelopes.
func (p *Pool) PullForLeader(maxN int) []*Envelope {
	p.mu.Lock()
	defer p.mu.Unlock()

	current := p.epochs.Current()
	out := make([]*Envelope, 0, maxN)
	for _, env := range p.envelopes {
		if len(out) >= maxN {
			break
		}
		if env.Status != EnvelopePending || env.EpochID != current.EpochID {
			continue
		}
		env.Status = EnvelopePulled
		out = append(out, env)
	}
	return out
}

// Reveal decrypts a pulled envelope, trying its own epoch key first
// and, past the stuck timeout, the pool's recovery key.
func (p *Pool) Reveal(txID uuid.UUID) ([]byte, error) {
	p.mu.Lock()
	env, ok := p.envelopes[txID]
	p.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	if env.Status == EnvelopeRevealed {
		return nil, ErrAlreadyRevealed
	}

	key, found := p.epochs.Find(env.EpochID)
	if found {
		if plaintext, ok := Open(env.Sealed, key.PublicKey, key.PrivateKey); ok {
			p.markRevealed(env)
			return plaintext, nil
		}
	}

	if time.Since(env.CreatedAt) > p.stuckTimeout {
		if plaintext, ok := Open(env.SealedRecovery, p.epochs.recoveryPub, p.epochs.recoveryPriv); ok {
			p.markRevealed(env)
			return plaintext, nil
		}
		return nil, ErrStuckLeader
	}

	return nil, ErrOpenFailed
}

func (p *Pool) markRevealed(env *Envelope) {
	p.mu.Lock()
	env.Status = EnvelopeRevealed
	p.mu.Unlock()
}

// RotateEpoch rotates the leader epoch key and evicts any still
// pending envelopes submitted longer ago than the stuck timeout.
func (p *Pool) RotateEpoch() error {
	if err := p.epochs.Rotate(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for id, env := range p.envelopes {
		if env.Status == EnvelopePending && now.Sub(env.CreatedAt) > p.stuckTimeout {
			env.Status = EnvelopeEvicted
			delete(p.envelopes, id)
		}
	}
	return nil
}
