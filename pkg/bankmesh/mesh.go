// Copyright 2025 BPI Labs
//
// Mesh is the single writer over the peer table: connect/leave,
// heartbeat recording, and liveness sweeps all serialize through one
// lock, mirroring the single-writer-per-entity discipline used
// throughout the system's other stores.

package bankmesh

import (
	"sync"
	"time"
)

// Mesh tracks known peer banks and their liveness.
type Mesh struct {
	mu    sync.Mutex
	peers map[string]*Peer

	heartbeatInterval time.Duration
}

// NewMesh constructs an empty Mesh with the given heartbeat cadence.
func NewMesh(heartbeatInterval time.Duration) *Mesh {
	if heartbeatInterval <= 0 {
		heartbeatInterval = DefaultHeartbeatInterval
	}
	return &Mesh{
		peers:             make(map[string]*Peer),
		heartbeatInterval: heartbeatInterval,
	}
}

// Connect admits a peer with a graceful-announcement semantics:
// reconnecting an already-known peer refreshes it rather than erroring,
// so a peer that restarts doesn't need a separate rejoin path.
func (m *Mesh) Connect(peer Peer, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.peers[peer.PeerID]
	if ok && existing.Status == PeerSuspended {
		return ErrPeerSuspended
	}

	peer.Status = PeerActive
	peer.LastHeartbeat = now
	if !ok {
		peer.JoinedAt = now
	} else {
		peer.JoinedAt = existing.JoinedAt
	}
	m.peers[peer.PeerID] = &peer
	return nil
}

// Leave removes peerID from the mesh with a graceful announcement.
func (m *Mesh) Leave(peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.peers[peerID]; !ok {
		return ErrPeerNotFound
	}
	delete(m.peers, peerID)
	return nil
}

// Heartbeat records liveness for peerID at time now.
func (m *Mesh) Heartbeat(peerID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	peer, ok := m.peers[peerID]
	if !ok {
		return ErrPeerNotFound
	}
	peer.LastHeartbeat = now
	if peer.Status == PeerInactive {
		peer.Status = PeerActive
	}
	return nil
}

// SweepLiveness marks any peer that has missed
// MissedHeartbeatsBeforeInactive consecutive intervals as inactive.
// Suspended peers are left untouched; only governance can lift a
// suspension.
func (m *Mesh) SweepLiveness(now time.Time) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	deadline := time.Duration(MissedHeartbeatsBeforeInactive) * m.heartbeatInterval
	var marked []string
	for id, peer := range m.peers {
		if peer.Status == PeerSuspended {
			continue
		}
		if now.Sub(peer.LastHeartbeat) > deadline && peer.Status != PeerInactive {
			peer.Status = PeerInactive
			marked = append(marked, id)
		}
	}
	return marked
}

// Suspend marks peerID suspended, used as the execution effect of a
// governance "suspend" proposal against an equivocating peer.
func (m *Mesh) Suspend(peerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	peer, ok := m.peers[peerID]
	if !ok {
		return ErrPeerNotFound
	}
	peer.Status = PeerSuspended
	return nil
}

// Get returns a copy of peerID's current record.
func (m *Mesh) Get(peerID string) (Peer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	peer, ok := m.peers[peerID]
	if !ok {
		return Peer{}, false
	}
	return *peer, true
}

// ActivePeers returns a snapshot of every peer currently active.
func (m *Mesh) ActivePeers() []Peer {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Peer, 0, len(m.peers))
	for _, p := range m.peers {
		if p.Status == PeerActive {
			out = append(out, *p)
		}
	}
	return out
}

// TotalWeight returns the summed governance weight of every peer that
// is not suspended (active and inactive peers both count).
func (m *Mesh) TotalWeight() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total uint64
	for _, p := range m.peers {
		if p.Status != PeerSuspended {
			total += p.Weight
		}
	}
	return total
}
