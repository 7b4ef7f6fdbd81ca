// Copyright 2025 BPI Labs

package ledger

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/google/uuid"
)

// AnchorTarget is the abstract external collaborator the ledger
// notarizes state to. No concrete target (a specific L1, a specific
// notary service) is implemented here — callers wire in their own.
type AnchorTarget interface {
	Submit(ctx context.Context, anchor *Anchor) (handle string, err error)
	Poll(ctx context.Context, handle string) (confirmations int, found bool, err error)
}

// AnchorPolicy controls anchor cadence: an anchor is due every Every
// blocks, or after Interval has elapsed since the last anchor,
// whichever comes first.
type AnchorPolicy struct {
	Every      uint64
	Interval   time.Duration
	MaxRetries int
	BaseBackoff time.Duration
}

// DefaultAnchorPolicy anchors every 50 blocks or 5 minutes, whichever
// is sooner, retrying a failed submission up to 5 times.
func DefaultAnchorPolicy() AnchorPolicy {
	return AnchorPolicy{
		Every:       50,
		Interval:    5 * time.Minute,
		MaxRetries:  5,
		BaseBackoff: 2 * time.Second,
	}
}

// Scheduler decides when the next anchor is due and builds its payload
// from the ledger store; Manager owns the actual submit/retry/poll
// lifecycle against an AnchorTarget.
type Scheduler struct {
	mu          sync.Mutex
	store       *Store
	policy      AnchorPolicy
	lastHeight  uint64
	lastAnchor  time.Time
}

func NewScheduler(store *Store, policy AnchorPolicy) *Scheduler {
	return &Scheduler{store: store, policy: policy, lastAnchor: time.Now()}
}

// Due reports whether an anchor is due given the current chain head,
// and if so builds the unsubmitted Anchor payload for it.
func (s *Scheduler) Due(targetDescriptor string) (*Anchor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	height, has, err := s.store.LatestHeight()
	if err != nil {
		return nil, fmt.Errorf("read latest height: %w", err)
	}
	if !has {
		return nil, ErrNoEligibleBlocks
	}

	blocksSince := height - s.lastHeight
	timeSince := time.Since(s.lastAnchor)
	if blocksSince < s.policy.Every && timeSince < s.policy.Interval {
		return nil, ErrNoEligibleBlocks
	}

	block, err := s.store.GetByHeight(height)
	if err != nil {
		return nil, fmt.Errorf("load anchor source block: %w", err)
	}

	sourceHash := block.Hash()
	anchorRoot := computeAnchorRoot(sourceHash, height, targetDescriptor)

	anchor := &Anchor{
		AnchorID:         uuid.New(),
		SourceBlockHash:  sourceHash,
		AnchorRoot:       anchorRoot,
		TargetDescriptor: targetDescriptor,
		Status:           AnchorPending,
	}

	s.lastHeight = height
	s.lastAnchor = time.Now()
	return anchor, nil
}

// computeAnchorRoot commits anchor_root = H(source_block_hash || metadata).
func computeAnchorRoot(sourceHash [32]byte, height uint64, targetDescriptor string) [32]byte {
	w := canon.NewWriter()
	w.Bytes32(sourceHash).U64(height).Str(targetDescriptor)
	return canon.Hash(canon.DomainAnchorRoot, w.Bytes())
}

// Manager drives an Anchor through submit -> retry -> poll against an
// AnchorTarget, tracking confirmations. Anchors never roll back:
// once submitted, a failure only changes Status, never removes the
// record.
type Manager struct {
	mu     sync.Mutex
	target AnchorTarget
	policy AnchorPolicy
}

func NewManager(target AnchorTarget, policy AnchorPolicy) *Manager {
	return &Manager{target: target, policy: policy}
}

// Submit attempts to submit an anchor with exponential backoff up to
// MaxRetries. On exhaustion the anchor is marked AnchorFailed and
// ErrAnchorTargetUnreachable is returned; the caller may retry later
// on the next scheduler tick.
func (m *Manager) Submit(ctx context.Context, anchor *Anchor) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= m.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(m.policy.BaseBackoff) * math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		handle, err := m.target.Submit(ctx, anchor)
		if err != nil {
			lastErr = err
			anchor.Attempts++
			continue
		}

		anchor.Handle = handle
		anchor.Status = AnchorSubmitted
		anchor.SubmittedAt = time.Now()
		return nil
	}

	anchor.Status = AnchorFailed
	return fmt.Errorf("%w: %v", ErrAnchorTargetUnreachable, lastErr)
}

// PollConfirmations checks the target for updated confirmation counts
// and marks the anchor AnchorConfirmed once it has at least one.
func (m *Manager) PollConfirmations(ctx context.Context, anchor *Anchor) error {
	if anchor.Status != AnchorSubmitted && anchor.Status != AnchorConfirmed {
		return fmt.Errorf("cannot poll anchor in status %q", anchor.Status)
	}

	confirmations, found, err := m.target.Poll(ctx, anchor.Handle)
	if err != nil {
		return fmt.Errorf("poll anchor target: %w", err)
	}
	if !found {
		return nil
	}

	anchor.Confirmations = confirmations
	if confirmations > 0 {
		anchor.Status = AnchorConfirmed
	}
	return nil
}
