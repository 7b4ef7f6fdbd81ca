// Copyright 2025 BPI Labs

package consensus

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/bpinet/bpci/pkg/bls"
	"github.com/bpinet/bpci/pkg/canon"
)

// ValidatorStatus is a validator's membership state in the active set.
type ValidatorStatus string

const (
	StatusActive  ValidatorStatus = "active"
	StatusJailed  ValidatorStatus = "jailed"
	StatusLeaving ValidatorStatus = "leaving"
)

// Validator is one member of the consensus validator set.
type Validator struct {
	ValidatorID string
	PublicKey   *bls.PublicKey
	Weight      uint64
	Status      ValidatorStatus
}

// pendingChange is a validator-set mutation staged to take effect at a
// future height, per the epoch_delay rule.
type pendingChange struct {
	effectiveAt uint64
	validator   Validator
}

// ValidatorSet is the ordered, weighted set of validators the
// consensus engine votes against. Rotation is block-indexed: changes
// queued via Stage take effect only once the chain reaches the staged
// height, never immediately.
type ValidatorSet struct {
	byID    map[string]*Validator
	order   []string // stable validator index order, used for the bitmap
	pending []pendingChange
}

// NewValidatorSet builds a set from an initial, already-active roster.
func NewValidatorSet(validators []Validator) *ValidatorSet {
	vs := &ValidatorSet{byID: make(map[string]*Validator, len(validators))}
	ids := make([]string, 0, len(validators))
	for i := range validators {
		v := validators[i]
		vs.byID[v.ValidatorID] = &v
		ids = append(ids, v.ValidatorID)
	}
	sort.Strings(ids)
	vs.order = ids
	return vs
}

// Stage queues a validator-set change (addition, removal, or weight
// update) to take effect at height h + epochDelay.
func (vs *ValidatorSet) Stage(v Validator, currentHeight, epochDelay uint64) {
	vs.pending = append(vs.pending, pendingChange{
		effectiveAt: currentHeight + epochDelay,
		validator:   v,
	})
}

// ApplyAt applies every staged change whose effective height has been
// reached, called once per committed block.
func (vs *ValidatorSet) ApplyAt(height uint64) {
	remaining := vs.pending[:0]
	for _, pc := range vs.pending {
		if height >= pc.effectiveAt {
			vs.apply(pc.validator)
		} else {
			remaining = append(remaining, pc)
		}
	}
	vs.pending = remaining
}

func (vs *ValidatorSet) apply(v Validator) {
	if _, exists := vs.byID[v.ValidatorID]; !exists {
		vs.order = append(vs.order, v.ValidatorID)
		sort.Strings(vs.order)
	}
	cp := v
	vs.byID[v.ValidatorID] = &cp
}

// Active returns the validators currently in StatusActive, in stable
// bitmap-index order.
func (vs *ValidatorSet) Active() []*Validator {
	out := make([]*Validator, 0, len(vs.order))
	for _, id := range vs.order {
		v := vs.byID[id]
		if v.Status == StatusActive {
			out = append(out, v)
		}
	}
	return out
}

// TotalActiveWeight sums the voting weight of all active validators.
func (vs *ValidatorSet) TotalActiveWeight() uint64 {
	var total uint64
	for _, v := range vs.Active() {
		total += v.Weight
	}
	return total
}

// Get looks up a validator by id, active or not.
func (vs *ValidatorSet) Get(validatorID string) (*Validator, bool) {
	v, ok := vs.byID[validatorID]
	return v, ok
}

// N returns the total count of validators tracked (the bitmap width).
func (vs *ValidatorSet) N() int {
	return len(vs.order)
}

// IndexOf returns the validator's fixed bitmap position, or -1.
func (vs *ValidatorSet) IndexOf(validatorID string) int {
	for i, id := range vs.order {
		if id == validatorID {
			return i
		}
	}
	return -1
}

// LeaderForRound picks the proposer for (height, round) by deterministic
// weighted round-robin seeded by H(prev_block_hash || height || round):
// the seed selects a position in [0, totalWeight) and the leader is the
// first active validator (in stable order) whose cumulative weight
// range covers that position.
func (vs *ValidatorSet) LeaderForRound(prevBlockHash [32]byte, height uint64, round uint32) (string, error) {
	active := vs.Active()
	if len(active) == 0 {
		return "", fmt.Errorf("no active validators")
	}

	total := vs.TotalActiveWeight()
	if total == 0 {
		return "", fmt.Errorf("active validator set has zero total weight")
	}

	w := canon.NewWriter()
	w.Bytes32(prevBlockHash).U64(height).U32(round)
	seedHash := canon.Hash(canon.DomainLeaderSeed, w.Bytes())
	seed := binary.BigEndian.Uint64(seedHash[:8])
	target := seed % total

	var cumulative uint64
	for _, v := range active {
		cumulative += v.Weight
		if target < cumulative {
			return v.ValidatorID, nil
		}
	}
	// Unreachable unless weights overflow; fall back to the last validator.
	return active[len(active)-1].ValidatorID, nil
}
