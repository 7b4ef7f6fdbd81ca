// Copyright 2025 BPI Labs

package consensus

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bpinet/bpci/pkg/bls"
)

// Stage is the IBFT-style round state: proposals are accepted at
// NewHeight, votes gather in Prepare then Commit, and a round either
// reaches Finalized or is abandoned via ViewChange.
type Stage int

const (
	StageNewHeight Stage = iota
	StagePrePrepare
	StagePrepare
	StageCommit
	StageViewChange
	StageFinalized
)

func (s Stage) String() string {
	switch s {
	case StageNewHeight:
		return "NEW_HEIGHT"
	case StagePrePrepare:
		return "PRE_PREPARE"
	case StagePrepare:
		return "PREPARE"
	case StageCommit:
		return "COMMIT"
	case StageViewChange:
		return "VIEW_CHANGE"
	case StageFinalized:
		return "FINALIZED"
	default:
		return "UNKNOWN"
	}
}

// Proposal is a leader's pre-prepare message for a given height/round.
type Proposal struct {
	Height     uint64
	Round      uint32
	PrevHash   [32]byte
	HeaderHash [32]byte
	Proposer   string
	Payload    []byte
}

// Vote is a single validator's PREPARE or COMMIT message for a round.
type Vote struct {
	Height      uint64
	Round       uint32
	Stage       Stage
	ValidatorID string
	HeaderHash  [32]byte
	Signature   *bls.Signature
}

// Ack is the synchronous result of submitting a vote or proposal.
type Ack struct {
	Accepted bool
	Reason   string
}

// FinalizedBlock is emitted on the Finalized channel once a round's
// commit certificate reaches the weighted two-thirds threshold.
type FinalizedBlock struct {
	Height     uint64
	Round      uint32
	HeaderHash [32]byte
	Payload    []byte
	Commit     *CommitCertificate
}

// EquivocationEvidence records two conflicting votes from the same
// validator for the same (height, round, stage), the trigger for a
// validator to be jailed.
type EquivocationEvidence struct {
	ValidatorID string
	Height      uint64
	Round       uint32
	Stage       Stage
	VoteA       Vote
	VoteB       Vote
}

// EngineConfig tunes round timing.
type EngineConfig struct {
	RoundTimeout time.Duration // Δ_p: time allowed per round before a view change
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{RoundTimeout: 4 * time.Second}
}

// maxBackoffMultiplier caps exponential round-timeout growth so a
// validator stuck in repeated view changes still retries on a bounded
// cadence instead of drifting to an effectively infinite timeout.
const maxBackoffMultiplier = 32

// roundTimeout scales RoundTimeout by 2^round, the same BaseBackoff *
// 2^attempt shape ledger.Manager.Submit and partner.Coordinator use for
// their own retry backoff, capped at maxBackoffMultiplier.
func (e *Engine) roundTimeout(round uint32) time.Duration {
	if round == 0 {
		return e.cfg.RoundTimeout
	}
	mult := math.Pow(2, float64(round))
	if mult > maxBackoffMultiplier {
		mult = maxBackoffMultiplier
	}
	return time.Duration(float64(e.cfg.RoundTimeout) * mult)
}

// Engine runs one IBFT-style consensus round-state machine. All
// mutable state (stage, votes, proposal) is owned exclusively by the
// loop goroutine started by Run; every external interaction —
// SubmitProposal, SubmitVote, ForceViewChange — is a message sent
// over a channel, never a direct field write.
type Engine struct {
	selfID     string
	privateKey *bls.PrivateKey
	cfg        EngineConfig

	vs *ValidatorSet

	events    chan engineEvent
	finalized chan FinalizedBlock
	evidence  chan EquivocationEvidence

	// BroadcastVote and BroadcastProposal are invoked by the loop
	// goroutine to hand outbound messages to the transport layer; they
	// must not block or mutate engine state.
	BroadcastVote     func(Vote)
	BroadcastProposal func(Proposal)

	snapMu sync.RWMutex
	snap   EngineStatus
}

// EngineStatus is a read-only snapshot of round progress, safe for
// concurrent reads from outside the loop goroutine.
type EngineStatus struct {
	Height uint64
	Round  uint32
	Stage  Stage
}

type engineEvent interface{ isEngineEvent() }

type voteEvent struct {
	vote  Vote
	reply chan Ack
}

type proposalEvent struct {
	proposal Proposal
	reply    chan Ack
}

type timeoutEvent struct {
	height uint64
	round  uint32
}

type viewChangeEvent struct {
	reason string
}

func (voteEvent) isEngineEvent()     {}
func (proposalEvent) isEngineEvent() {}
func (timeoutEvent) isEngineEvent()  {}
func (viewChangeEvent) isEngineEvent() {}

// roundState is the mutable data for the height/round currently in
// progress; it lives only inside the loop goroutine.
type roundState struct {
	height   uint64
	round    uint32
	stage    Stage
	prevHash [32]byte

	proposal     *Proposal
	prepareVotes map[string]Vote
	commitVotes  map[string]CommitSignature
}

func newRoundState(height uint64, round uint32, prevHash [32]byte) *roundState {
	return &roundState{
		height:       height,
		round:        round,
		stage:        StageNewHeight,
		prevHash:     prevHash,
		prepareVotes: make(map[string]Vote),
		commitVotes:  make(map[string]CommitSignature),
	}
}

// NewEngine constructs an engine for selfID, starting at the given
// height with prevHash as the hash of the last finalized block.
func NewEngine(selfID string, privateKey *bls.PrivateKey, vs *ValidatorSet, cfg EngineConfig) *Engine {
	return &Engine{
		selfID:     selfID,
		privateKey: privateKey,
		cfg:        cfg,
		vs:         vs,
		events:     make(chan engineEvent, 256),
		finalized:  make(chan FinalizedBlock, 16),
		evidence:   make(chan EquivocationEvidence, 16),
	}
}

// Finalized returns the channel on which committed blocks are
// delivered to the caller (the ledger append path).
func (e *Engine) Finalized() <-chan FinalizedBlock { return e.finalized }

// Evidence returns the channel on which equivocation evidence is
// delivered, for slashing.
func (e *Engine) Evidence() <-chan EquivocationEvidence { return e.evidence }

// Snapshot returns the current height/round/stage.
func (e *Engine) Snapshot() EngineStatus {
	e.snapMu.RLock()
	defer e.snapMu.RUnlock()
	return e.snap
}

func (e *Engine) publishSnapshot(rs *roundState) {
	e.snapMu.Lock()
	e.snap = EngineStatus{Height: rs.height, Round: rs.round, Stage: rs.stage}
	e.snapMu.Unlock()
}

// Run drives the event loop for a single height starting at round 0
// until the height finalizes or the context is cancelled. Callers
// start a new Run for the next height after a block finalizes.
func (e *Engine) Run(ctx context.Context, height uint64, prevHash [32]byte) {
	rs := newRoundState(height, 0, prevHash)
	e.publishSnapshot(rs)
	timer := time.NewTimer(e.cfg.RoundTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			e.startViewChange(rs, "round timeout")
			timer.Reset(e.roundTimeout(rs.round))
		case ev := <-e.events:
			switch v := ev.(type) {
			case proposalEvent:
				v.reply <- e.handleProposal(rs, v.proposal)
			case voteEvent:
				reply, finalizedBlock := e.handleVote(rs, v.vote)
				v.reply <- reply
				if finalizedBlock != nil {
					e.finalized <- *finalizedBlock
					return
				}
			case viewChangeEvent:
				e.startViewChange(rs, v.reason)
				timer.Reset(e.roundTimeout(rs.round))
			case timeoutEvent:
				if v.height == rs.height && v.round == rs.round {
					e.startViewChange(rs, "round timeout")
					timer.Reset(e.roundTimeout(rs.round))
				}
			}
			e.publishSnapshot(rs)
		}
	}
}

// Propose builds and signs a pre-prepare message if selfID is the
// computed leader for the round currently in progress; the caller is
// responsible for broadcasting the returned proposal (also delivered
// via BroadcastProposal if set).
func (e *Engine) Propose(height uint64, round uint32, prevHash [32]byte, headerHash [32]byte, payload []byte) (*Proposal, error) {
	leader, err := e.vs.LeaderForRound(prevHash, height, round)
	if err != nil {
		return nil, err
	}
	if leader != e.selfID {
		return nil, fmt.Errorf("%w: leader for round is %s, not %s", ErrNotLeader, leader, e.selfID)
	}

	p := Proposal{
		Height:     height,
		Round:      round,
		PrevHash:   prevHash,
		HeaderHash: headerHash,
		Proposer:   e.selfID,
		Payload:    payload,
	}
	if e.BroadcastProposal != nil {
		e.BroadcastProposal(p)
	}
	return &p, nil
}

// SubmitProposal delivers a received (or locally built) proposal into
// the event loop and waits for it to be processed.
func (e *Engine) SubmitProposal(p Proposal) Ack {
	reply := make(chan Ack, 1)
	e.events <- proposalEvent{proposal: p, reply: reply}
	return <-reply
}

// SubmitVote delivers a received PREPARE or COMMIT vote into the
// event loop and waits for it to be processed.
func (e *Engine) SubmitVote(v Vote) Ack {
	reply := make(chan Ack, 1)
	e.events <- voteEvent{vote: v, reply: reply}
	return <-reply
}

// ForceViewChange requests a view change for a liveness reason
// external to the timer (e.g. detected proposer unreachable).
func (e *Engine) ForceViewChange(reason string) {
	e.events <- viewChangeEvent{reason: reason}
}

func (e *Engine) handleProposal(rs *roundState, p Proposal) Ack {
	if p.Height != rs.height || p.Round != rs.round {
		return Ack{Accepted: false, Reason: ErrWrongRound.Error()}
	}
	if rs.stage != StageNewHeight {
		return Ack{Accepted: false, Reason: ErrStageClosed.Error()}
	}

	leader, err := e.vs.LeaderForRound(rs.prevHash, rs.height, rs.round)
	if err != nil {
		return Ack{Accepted: false, Reason: err.Error()}
	}
	if p.Proposer != leader {
		return Ack{Accepted: false, Reason: ErrNotLeader.Error()}
	}
	if p.PrevHash != rs.prevHash {
		return Ack{Accepted: false, Reason: ErrWrongRound.Error()}
	}

	proposalCopy := p
	rs.proposal = &proposalCopy
	rs.stage = StagePrePrepare

	myVote := e.signVote(rs, StagePrepare, p.HeaderHash)
	rs.prepareVotes[e.selfID] = myVote
	rs.stage = StagePrepare
	if e.BroadcastVote != nil {
		e.BroadcastVote(myVote)
	}

	return Ack{Accepted: true}
}

func (e *Engine) signVote(rs *roundState, stage Stage, headerHash [32]byte) Vote {
	domain := bls.DomainPrepare
	if stage == StageCommit {
		domain = bls.DomainCommit
	}
	sig := e.privateKey.SignWithDomain(headerHash[:], domain)
	return Vote{
		Height:      rs.height,
		Round:       rs.round,
		Stage:       stage,
		ValidatorID: e.selfID,
		HeaderHash:  headerHash,
		Signature:   sig,
	}
}

// handleVote records an incoming vote, checking for equivocation, and
// advances the round's stage once the weighted threshold for the
// current stage is reached. It returns the finalized block only when
// the COMMIT stage closes.
func (e *Engine) handleVote(rs *roundState, v Vote) (Ack, *FinalizedBlock) {
	if v.Height != rs.height || v.Round != rs.round {
		return Ack{Accepted: false, Reason: ErrWrongRound.Error()}, nil
	}
	validator, ok := e.vs.Get(v.ValidatorID)
	if !ok || validator.Status != StatusActive {
		return Ack{Accepted: false, Reason: ErrNotActiveValidator.Error()}, nil
	}

	switch v.Stage {
	case StagePrepare:
		if rs.stage != StagePrePrepare && rs.stage != StagePrepare {
			return Ack{Accepted: false, Reason: ErrStageClosed.Error()}, nil
		}
		if existing, dup := rs.prepareVotes[v.ValidatorID]; dup {
			if existing.HeaderHash != v.HeaderHash {
				e.evidence <- EquivocationEvidence{
					ValidatorID: v.ValidatorID, Height: v.Height, Round: v.Round,
					Stage: StagePrepare, VoteA: existing, VoteB: v,
				}
				return Ack{Accepted: false, Reason: ErrEquivocation.Error()}, nil
			}
			return Ack{Accepted: false, Reason: ErrDuplicateVote.Error()}, nil
		}
		if !validator.PublicKey.VerifyWithDomain(v.Signature, v.HeaderHash[:], bls.DomainPrepare) {
			return Ack{Accepted: false, Reason: ErrInvalidSignature.Error()}, nil
		}
		rs.prepareVotes[v.ValidatorID] = v
		rs.stage = StagePrepare

		if MeetsCommitThreshold(e.prepareWeight(rs), e.vs.TotalActiveWeight()) && rs.proposal != nil {
			rs.stage = StageCommit
			myCommit := e.signVote(rs, StageCommit, rs.proposal.HeaderHash)
			rs.commitVotes[e.selfID] = CommitSignature{ValidatorID: e.selfID, Signature: myCommit.Signature}
			if e.BroadcastVote != nil {
				e.BroadcastVote(myCommit)
			}
		}
		return Ack{Accepted: true}, nil

	case StageCommit:
		if rs.stage != StageCommit {
			return Ack{Accepted: false, Reason: ErrStageClosed.Error()}, nil
		}
		if _, dup := rs.commitVotes[v.ValidatorID]; dup {
			if v.HeaderHash != rs.proposal.HeaderHash {
				return Ack{Accepted: false, Reason: ErrEquivocation.Error()}, nil
			}
			return Ack{Accepted: false, Reason: ErrDuplicateVote.Error()}, nil
		}
		if !validator.PublicKey.VerifyWithDomain(v.Signature, v.HeaderHash[:], bls.DomainCommit) {
			return Ack{Accepted: false, Reason: ErrInvalidSignature.Error()}, nil
		}
		rs.commitVotes[v.ValidatorID] = CommitSignature{ValidatorID: v.ValidatorID, Signature: v.Signature}

		cert, err := e.tryBuildCertificate(rs)
		if err != nil {
			return Ack{Accepted: true}, nil
		}
		rs.stage = StageFinalized
		return Ack{Accepted: true}, &FinalizedBlock{
			Height:     rs.height,
			Round:      rs.round,
			HeaderHash: rs.proposal.HeaderHash,
			Payload:    rs.proposal.Payload,
			Commit:     cert,
		}

	default:
		return Ack{Accepted: false, Reason: "unexpected vote stage"}, nil
	}
}

func (e *Engine) prepareWeight(rs *roundState) uint64 {
	var total uint64
	for id := range rs.prepareVotes {
		if v, ok := e.vs.Get(id); ok && v.Status == StatusActive {
			total += v.Weight
		}
	}
	return total
}

func (e *Engine) tryBuildCertificate(rs *roundState) (*CommitCertificate, error) {
	sigs := make([]CommitSignature, 0, len(rs.commitVotes))
	for _, cs := range rs.commitVotes {
		sigs = append(sigs, cs)
	}
	return BuildCommitCertificate(e.vs, rs.proposal.HeaderHash, rs.round, sigs)
}

// startViewChange abandons the current round in favor of round+1,
// resetting per-round vote state. The caller rearms the round timer
// with roundTimeout(rs.round) afterward, so repeated view changes back
// off exponentially instead of retrying on a fixed cadence.
func (e *Engine) startViewChange(rs *roundState, reason string) {
	rs.stage = StageViewChange
	rs.round++
	rs.proposal = nil
	rs.prepareVotes = make(map[string]Vote)
	rs.commitVotes = make(map[string]CommitSignature)
	rs.stage = StageNewHeight
}
