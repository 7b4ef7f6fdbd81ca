// Copyright 2025 BPI Labs

package consensus

import (
	"testing"

	"github.com/bpinet/bpci/pkg/bls"
)

func signCommit(t *testing.T, sk *bls.PrivateKey, validatorID string, headerHash [32]byte) CommitSignature {
	t.Helper()
	return CommitSignature{
		ValidatorID: validatorID,
		Signature:   sk.SignWithDomain(headerHash[:], bls.DomainCommit),
	}
}

func TestBuildAndVerifyCommitCertificate(t *testing.T) {
	validators, keys := testValidators(t, 4)
	vs := NewValidatorSet(validators)

	headerHash := [32]byte{7, 7, 7}
	sigs := []CommitSignature{
		signCommit(t, keys[0], validators[0].ValidatorID, headerHash),
		signCommit(t, keys[1], validators[1].ValidatorID, headerHash),
		signCommit(t, keys[2], validators[2].ValidatorID, headerHash),
	}

	cert, err := BuildCommitCertificate(vs, headerHash, 0, sigs)
	if err != nil {
		t.Fatalf("build commit certificate: %v", err)
	}
	if err := VerifyCommitCertificate(vs, cert); err != nil {
		t.Errorf("verify commit certificate: %v", err)
	}
}

func TestBuildCommitCertificateBelowThreshold(t *testing.T) {
	validators, keys := testValidators(t, 4)
	vs := NewValidatorSet(validators)

	headerHash := [32]byte{1}
	sigs := []CommitSignature{
		signCommit(t, keys[0], validators[0].ValidatorID, headerHash),
	}

	if _, err := BuildCommitCertificate(vs, headerHash, 0, sigs); err == nil {
		t.Errorf("expected insufficient-weight error with only 1/4 validators signing")
	}
}

func TestBuildCommitCertificateRejectsWrongSignature(t *testing.T) {
	validators, keys := testValidators(t, 4)
	vs := NewValidatorSet(validators)

	headerHash := [32]byte{2}
	wrongHash := [32]byte{3}
	sigs := []CommitSignature{
		{ValidatorID: validators[0].ValidatorID, Signature: keys[0].SignWithDomain(wrongHash[:], bls.DomainCommit)},
		signCommit(t, keys[1], validators[1].ValidatorID, headerHash),
		signCommit(t, keys[2], validators[2].ValidatorID, headerHash),
	}

	if _, err := BuildCommitCertificate(vs, headerHash, 0, sigs); err == nil {
		t.Errorf("expected signature verification failure")
	}
}

func TestVerifyCommitCertificateRejectsTamperedBitmap(t *testing.T) {
	validators, keys := testValidators(t, 4)
	vs := NewValidatorSet(validators)

	headerHash := [32]byte{4}
	sigs := []CommitSignature{
		signCommit(t, keys[0], validators[0].ValidatorID, headerHash),
		signCommit(t, keys[1], validators[1].ValidatorID, headerHash),
		signCommit(t, keys[2], validators[2].ValidatorID, headerHash),
	}
	cert, err := BuildCommitCertificate(vs, headerHash, 0, sigs)
	if err != nil {
		t.Fatalf("build commit certificate: %v", err)
	}

	// Clear the bitmap down to a single signer; one of four validators
	// falls short of the two-thirds weight threshold, and the aggregate
	// signature no longer matches the (now smaller) claimed signer set.
	cert.ValidatorBitmap = bitmapSet(vs.N(), []int{0})
	if err := VerifyCommitCertificate(vs, cert); err == nil {
		t.Errorf("expected verification failure after bitmap tampering")
	}
}

func TestMeetsCommitThreshold(t *testing.T) {
	cases := []struct {
		weight, total uint64
		want          bool
	}{
		{0, 0, false},
		{2, 3, true},
		{1, 3, false},
		{3, 4, true},
		{2, 4, false},
	}
	for _, c := range cases {
		if got := MeetsCommitThreshold(c.weight, c.total); got != c.want {
			t.Errorf("MeetsCommitThreshold(%d, %d) = %v, want %v", c.weight, c.total, got, c.want)
		}
	}
}
