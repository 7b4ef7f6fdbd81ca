// Copyright 2025 BPI Labs
//
// Registry tracks partner chains and their partnerships with the home
// chain. Following the same connection-bookkeeping shape as
// pkg/bankmesh.Mesh, it is the single writer over both tables behind
// one mutex.

package partner

import (
	"sync"
	"time"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/google/uuid"
)

// Registry is the single writer over registered chains and
// partnerships.
type Registry struct {
	mu           sync.Mutex
	chains       map[string]*Chain
	partnerships map[uuid.UUID]*Partnership
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chains:       make(map[string]*Chain),
		partnerships: make(map[uuid.UUID]*Partnership),
	}
}

// RegisterChain adds a new partner chain in ChainActive status.
func (r *Registry) RegisterChain(c Chain, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chains[c.ChainID]; ok {
		return ErrChainAlreadyRegistered
	}
	if c.SharePct < 0 || c.SharePct > 25 {
		return ErrSharePctOutOfRange
	}
	c.Status = ChainActive
	c.JoinedAt = now
	r.chains[c.ChainID] = &c
	return nil
}

// Chain returns a copy of chainID's current record.
func (r *Registry) Chain(chainID string) (Chain, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chains[chainID]
	if !ok {
		return Chain{}, false
	}
	return *c, true
}

// MarkDegraded flags a chain degraded after persistent notify failure.
func (r *Registry) MarkDegraded(chainID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.chains[chainID]
	if !ok {
		return ErrChainNotFound
	}
	c.Status = ChainDegraded
	return nil
}

// ActiveChains returns every chain currently in ChainActive status.
func (r *Registry) ActiveChains() []Chain {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Chain, 0, len(r.chains))
	for _, c := range r.chains {
		if c.Status == ChainActive {
			out = append(out, *c)
		}
	}
	return out
}

// ProposePartnership opens a new partnership awaiting one or both
// signatures.
func (r *Registry) ProposePartnership(partnerChainID, homeChainID string) (*Partnership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.chains[partnerChainID]; !ok {
		return nil, ErrChainNotFound
	}
	p := &Partnership{
		ID:             uuid.New(),
		PartnerChainID: partnerChainID,
		HomeChainID:    homeChainID,
	}
	p.Hash = hashPartnership(p)
	r.partnerships[p.ID] = p
	cp := *p
	return &cp, nil
}

// SignPartner attaches the partner chain's signature over the
// partnership's hash.
func (r *Registry) SignPartner(partnershipID uuid.UUID, sig []byte) (*Partnership, error) {
	return r.sign(partnershipID, sig, false)
}

// SignHome attaches the home chain's signature over the partnership's
// hash.
func (r *Registry) SignHome(partnershipID uuid.UUID, sig []byte) (*Partnership, error) {
	return r.sign(partnershipID, sig, true)
}

func (r *Registry) sign(partnershipID uuid.UUID, sig []byte, home bool) (*Partnership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.partnerships[partnershipID]
	if !ok {
		return nil, ErrPartnershipNotFound
	}
	if home {
		p.SigHome = sig
	} else {
		p.SigPartner = sig
	}
	cp := *p
	return &cp, nil
}

// Partnership returns a copy of partnershipID's current record.
func (r *Registry) Partnership(partnershipID uuid.UUID) (Partnership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.partnerships[partnershipID]
	if !ok {
		return Partnership{}, false
	}
	return *p, true
}

// MutualPartnershipFor returns the mutual partnership for a partner
// chain, if one exists.
func (r *Registry) MutualPartnershipFor(partnerChainID string) (Partnership, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.partnerships {
		if p.PartnerChainID == partnerChainID && p.Mutual() {
			return *p, true
		}
	}
	return Partnership{}, false
}

func hashPartnership(p *Partnership) [32]byte {
	w := canon.NewWriter()
	w.Bytes32(uuidBytes(p.ID)).Str(p.PartnerChainID).Str(p.HomeChainID)
	return canon.Hash(canon.DomainPartnership, w.Bytes())
}

func uuidBytes(id uuid.UUID) [32]byte {
	var out [32]byte
	copy(out[16:], id[:])
	return out
}
