// Copyright 2025 BPI Labs
//
// GovernanceBook runs consensus-voted mesh proposals: a weighted
// approval threshold (67%, or 80% for emergency proposals) gates
// passage, and a T_exec timelock delays execution after approval so
// peers have a window to react before a change takes effect.

package bankmesh

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// GovernanceBook is the single writer over the proposal table.
type GovernanceBook struct {
	mu        sync.Mutex
	proposals map[uuid.UUID]*Proposal
	mesh      *Mesh
}

// NewGovernanceBook constructs a book that resolves voting weight
// against mesh.TotalWeight, the weight of every non-suspended peer.
func NewGovernanceBook(mesh *Mesh) *GovernanceBook {
	return &GovernanceBook{
		proposals: make(map[uuid.UUID]*Proposal),
		mesh:      mesh,
	}
}

// Propose opens a new proposal with a voting deadline and, once
// approved, an execution timelock.
func (g *GovernanceBook) Propose(proposalType string, spec []byte, deadline time.Time, tExec time.Duration, emergency bool, now time.Time) *Proposal {
	g.mu.Lock()
	defer g.mu.Unlock()

	p := &Proposal{
		ID:        uuid.New(),
		Type:      proposalType,
		Spec:      spec,
		Deadline:  deadline,
		TExec:     tExec,
		Emergency: emergency,
		Votes:     make(map[string]bool),
		Status:    ProposalVoting,
		CreatedAt: now,
	}
	g.proposals[p.ID] = p
	return cloneProposal(p)
}

// Vote casts peerID's ballot on proposalID and, if this vote pushes
// the weighted approval past threshold, marks the proposal approved.
func (g *GovernanceBook) Vote(proposalID uuid.UUID, peerID string, approve bool, now time.Time) (*Proposal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.proposals[proposalID]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if p.Status != ProposalVoting {
		return nil, ErrProposalClosed
	}
	if now.After(p.Deadline) {
		p.Status = ProposalExpired
		return cloneProposal(p), ErrProposalClosed
	}

	p.Votes[peerID] = approve

	total := g.mesh.TotalWeight()
	if total == 0 {
		return cloneProposal(p), nil
	}

	var approveWeight uint64
	for id, vote := range p.Votes {
		if !vote {
			continue
		}
		if peer, ok := g.mesh.Get(id); ok {
			approveWeight += peer.Weight
		}
	}

	threshold := ApprovalThreshold
	if p.Emergency {
		threshold = EmergencyApprovalThreshold
	}
	if float64(approveWeight)/float64(total) >= threshold {
		p.Status = ProposalApproved
		p.ApprovedAt = now
	}

	return cloneProposal(p), nil
}

// Execute marks proposalID executed, failing if it was never approved
// or its timelock has not yet elapsed.
func (g *GovernanceBook) Execute(proposalID uuid.UUID, now time.Time) (*Proposal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.proposals[proposalID]
	if !ok {
		return nil, ErrProposalNotFound
	}
	if p.Status != ProposalApproved {
		return nil, ErrProposalNotApproved
	}
	if now.Before(p.ApprovedAt.Add(p.TExec)) {
		return nil, ErrTimelockNotElapsed
	}
	p.Status = ProposalExecuted
	return cloneProposal(p), nil
}

// ApprovedProposals returns the IDs of every proposal currently in
// ProposalApproved status, i.e. those Execute may succeed on once their
// timelock elapses. Callers poll this on their own cadence (an epoch
// boundary, a block height) rather than being pushed a notification,
// since approval and timelock expiry happen on independent clocks.
func (g *GovernanceBook) ApprovedProposals() []uuid.UUID {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ids []uuid.UUID
	for id, p := range g.proposals {
		if p.Status == ProposalApproved {
			ids = append(ids, id)
		}
	}
	return ids
}

// Get returns a copy of proposalID's current record.
func (g *GovernanceBook) Get(proposalID uuid.UUID) (Proposal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.proposals[proposalID]
	if !ok {
		return Proposal{}, false
	}
	return *cloneProposal(p), true
}

func cloneProposal(p *Proposal) *Proposal {
	cp := *p
	cp.Votes = make(map[string]bool, len(p.Votes))
	for k, v := range p.Votes {
		cp.Votes[k] = v
	}
	return &cp
}
