// Copyright 2025 BPI Labs

package bankmesh

import (
	"sync"
	"time"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/google/uuid"
)

// SettlementStore is the single writer over the settlement table; every
// phase transition is checked against the closed adjacency graph in
// transitions.go before it is applied.
type SettlementStore struct {
	mu          sync.Mutex
	settlements map[uuid.UUID]*Settlement
	timeout     time.Duration
}

// NewSettlementStore constructs a store with the given stuck-settlement
// timeout (defaults to DefaultSettlementTimeout).
func NewSettlementStore(timeout time.Duration) *SettlementStore {
	if timeout <= 0 {
		timeout = DefaultSettlementTimeout
	}
	return &SettlementStore{
		settlements: make(map[uuid.UUID]*Settlement),
		timeout:     timeout,
	}
}

// Settle opens a new settlement in the initiated phase.
func (s *SettlementStore) Settle(fromBank, toBank, token string, amount int64, purpose string, now time.Time) *Settlement {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := &Settlement{
		ID:       uuid.New(),
		FromBank: fromBank,
		ToBank:   toBank,
		Token:    token,
		Amount:   amount,
		Purpose:  purpose,
		Phase:    SettlementInitiated,
		Created:  now,
		Updated:  now,
	}
	st.Hash = hashSettlement(st)
	s.settlements[st.ID] = st
	return cloneSettlement(st)
}

// Get returns a copy of id's current record.
func (s *SettlementStore) Get(id uuid.UUID) (Settlement, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.settlements[id]
	if !ok {
		return Settlement{}, false
	}
	return *st, true
}

// Transition moves id from its current phase to 'to', rejecting any
// edge absent from the adjacency graph.
func (s *SettlementStore) Transition(id uuid.UUID, to SettlementPhase, now time.Time) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.settlements[id]
	if !ok {
		return nil, ErrSettlementNotFound
	}
	if IsTerminal(st.Phase) {
		return nil, ErrTerminalSettlement
	}
	if !CanTransition(st.Phase, to) {
		return nil, ErrInvalidTransition
	}

	st.Phase = to
	st.Updated = now
	st.Hash = hashSettlement(st)
	return cloneSettlement(st), nil
}

// SweepTimeouts rolls every settlement stuck in 'locked' past the
// store's timeout back to 'initiated', releasing its escrow hold, and
// returns the ids it touched.
func (s *SettlementStore) SweepTimeouts(now time.Time) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	var touched []uuid.UUID
	for id, st := range s.settlements {
		if st.Phase == SettlementLocked && now.Sub(st.Updated) > s.timeout {
			st.Phase = SettlementInitiated
			st.Updated = now
			st.Hash = hashSettlement(st)
			touched = append(touched, id)
		}
	}
	return touched
}

func cloneSettlement(st *Settlement) *Settlement {
	cp := *st
	return &cp
}

func hashSettlement(st *Settlement) [32]byte {
	w := canon.NewWriter()
	idBytes := uuidBytes32(st.ID)
	w.Bytes32(idBytes).Str(st.FromBank).Str(st.ToBank).Str(st.Token).
		I64(st.Amount).Str(st.Purpose).Str(string(st.Phase)).
		I64(st.Created.UnixNano()).I64(st.Updated.UnixNano())
	return canon.Hash(canon.DomainSettlement, w.Bytes())
}

func uuidBytes32(id uuid.UUID) [32]byte {
	var out [32]byte
	copy(out[:16], id[:])
	return out
}
