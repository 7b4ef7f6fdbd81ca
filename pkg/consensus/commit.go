// Copyright 2025 BPI Labs

package consensus

import (
	"fmt"

	"github.com/bpinet/bpci/pkg/bls"
)

// CommitSignature is one validator's signature over a block header
// hash, collected during the COMMIT stage.
type CommitSignature struct {
	ValidatorID string
	Signature   *bls.Signature
}

// CommitCertificate is the aggregated proof that a block reached the
// weighted two-thirds commit threshold: a single aggregate signature
// plus a bitmap identifying which validators (by their fixed index in
// the active set) contributed to it.
type CommitCertificate struct {
	HeaderHash      [32]byte
	Round           uint32
	AggregateSig    *bls.Signature
	ValidatorBitmap []byte // one bit per validator, indexed by ValidatorSet order
}

// bitmapSet marshals a set of validator indices into a bitmap sized
// for vs.N() validators.
func bitmapSet(n int, indices []int) []byte {
	bitmap := make([]byte, (n+7)/8)
	for _, idx := range indices {
		bitmap[idx/8] |= 1 << uint(idx%8)
	}
	return bitmap
}

// bitmapIndices returns the set bits in a validator bitmap.
func bitmapIndices(bitmap []byte, n int) []int {
	var out []int
	for i := 0; i < n; i++ {
		if bitmap[i/8]&(1<<uint(i%8)) != 0 {
			out = append(out, i)
		}
	}
	return out
}

// BuildCommitCertificate aggregates per-validator commit signatures
// over headerHash into a single certificate, failing if the weighted
// signing power does not reach the ceil(2/3) active-weight threshold.
func BuildCommitCertificate(vs *ValidatorSet, headerHash [32]byte, round uint32, sigs []CommitSignature) (*CommitCertificate, error) {
	if len(sigs) == 0 {
		return nil, fmt.Errorf("%w: no signatures supplied", ErrInsufficientWeight)
	}

	var (
		indices    []int
		rawSigs    []*bls.Signature
		weightSum  uint64
		seenVoters = make(map[string]bool)
	)

	for _, cs := range sigs {
		if seenVoters[cs.ValidatorID] {
			continue
		}
		v, ok := vs.Get(cs.ValidatorID)
		if !ok || v.Status != StatusActive {
			return nil, fmt.Errorf("%w: %s", ErrNotActiveValidator, cs.ValidatorID)
		}
		if !v.PublicKey.VerifyWithDomain(cs.Signature, headerHash[:], bls.DomainCommit) {
			return nil, fmt.Errorf("%w: validator %s", ErrInvalidSignature, cs.ValidatorID)
		}

		idx := vs.IndexOf(cs.ValidatorID)
		indices = append(indices, idx)
		rawSigs = append(rawSigs, cs.Signature)
		weightSum += v.Weight
		seenVoters[cs.ValidatorID] = true
	}

	total := vs.TotalActiveWeight()
	if !MeetsCommitThreshold(weightSum, total) {
		return nil, fmt.Errorf("%w: %d/%d", ErrInsufficientWeight, weightSum, total)
	}

	aggSig, err := bls.AggregateSignatures(rawSigs)
	if err != nil {
		return nil, fmt.Errorf("aggregate commit signatures: %w", err)
	}

	return &CommitCertificate{
		HeaderHash:      headerHash,
		Round:           round,
		AggregateSig:    aggSig,
		ValidatorBitmap: bitmapSet(vs.N(), indices),
	}, nil
}

// VerifyCommitCertificate recomputes the aggregate public key for the
// bitmap's signers and checks the aggregate signature, then confirms
// their combined weight still meets the two-thirds threshold.
func VerifyCommitCertificate(vs *ValidatorSet, cert *CommitCertificate) error {
	indices := bitmapIndices(cert.ValidatorBitmap, vs.N())
	if len(indices) == 0 {
		return fmt.Errorf("%w: empty validator bitmap", ErrInsufficientWeight)
	}

	var (
		pubKeys   []*bls.PublicKey
		weightSum uint64
	)
	for _, idx := range indices {
		if idx >= len(vs.order) {
			return fmt.Errorf("consensus: bitmap index %d out of range", idx)
		}
		v := vs.byID[vs.order[idx]]
		if v.Status != StatusActive {
			return fmt.Errorf("%w: bitmap references inactive validator %s", ErrNotActiveValidator, v.ValidatorID)
		}
		pubKeys = append(pubKeys, v.PublicKey)
		weightSum += v.Weight
	}

	total := vs.TotalActiveWeight()
	if !MeetsCommitThreshold(weightSum, total) {
		return fmt.Errorf("%w: %d/%d", ErrInsufficientWeight, weightSum, total)
	}

	if !bls.VerifyAggregateSignatureWithDomain(cert.AggregateSig, pubKeys, cert.HeaderHash[:], bls.DomainCommit) {
		return ErrInvalidSignature
	}
	return nil
}

// MeetsCommitThreshold reports whether weight out of total reaches the
// ceil(2/3) weighted supermajority the commit stage requires.
func MeetsCommitThreshold(weight, total uint64) bool {
	if total == 0 {
		return false
	}
	// ceil(2 * total / 3) without floating point.
	required := (2*total + 2) / 3
	return weight >= required
}
