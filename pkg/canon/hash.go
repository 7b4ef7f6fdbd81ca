package canon

import "crypto/sha256"

// Domain separation tags. Every commitment the system computes goes
// through Hash with one of these tags so that a digest computed for one
// purpose (a receipt, a Merkle leaf, an anchor root, ...) can never be
// replayed as if it were a digest for another.
const (
	DomainStepReceipt  = "BPI_STEP_RECEIPT_V1"
	DomainPayload      = "BPI_PAYLOAD_V1"
	DomainWitness      = "BPI_WITNESS_V1"
	DomainTxMerkle     = "BPI_TX_MERKLE_V1"
	DomainReceiptLeaf  = "BPI_RECEIPT_LEAF_V1"
	DomainBlockHeader  = "BPI_BLOCK_HEADER_V1"
	DomainAnchorRoot   = "BPI_ANCHOR_ROOT_V1"
	DomainEpochReport  = "BPI_EPOCH_REPORT_V1"
	DomainDistribution = "BPI_DISTRIBUTION_V1"
	DomainSettlement   = "BPI_SETTLEMENT_V1"
	DomainLeaderSeed   = "BPI_LEADER_SEED_V1"
	DomainViewChange   = "BPI_VIEW_CHANGE_V1"
	DomainPartnership  = "BPI_PARTNERSHIP_V1"
)

// Hash computes SHA-256(domain || 0x00 || data). The NUL separator
// prevents domain/data concatenation ambiguity (a domain tag can never
// contain a NUL byte).
func Hash(domain string, data []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// HashConcat hashes a domain tag over the concatenation of several
// byte slices, used for commitments built from multiple fields
// (e.g. anchor_root = H(source_block_hash || metadata)).
func HashConcat(domain string, parts ...[]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
