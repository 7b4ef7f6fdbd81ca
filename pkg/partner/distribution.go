// Copyright 2025 BPI Labs
//
// Coordinator settles one auction window's revenue across registered
// partner chains, commits the distribution table with a Merkle root,
// and retries each partner's notification with the same bounded
// exponential backoff shape as pkg/ledger.Manager.Submit.

package partner

import (
	"context"
	"encoding/hex"
	"math"
	"sort"
	"time"

	"github.com/bpinet/bpci/pkg/canon"
	"github.com/bpinet/bpci/pkg/eventbus"
	"github.com/bpinet/bpci/pkg/merkle"
	"github.com/google/uuid"
)

// NotifyPolicy controls how persistently the Coordinator retries a
// partner notification before flagging the partner degraded.
type NotifyPolicy struct {
	MaxRetries  int
	BaseBackoff time.Duration
}

// DefaultNotifyPolicy retries a failed notify up to 5 times.
func DefaultNotifyPolicy() NotifyPolicy {
	return NotifyPolicy{MaxRetries: 5, BaseBackoff: 2 * time.Second}
}

// Coordinator is the single writer over the distribution record log.
// It is not internally mutex-guarded: callers serialize window
// settlement the same way pkg/economy.Engine serializes epoch
// settlement, one window (or epoch) at a time.
type Coordinator struct {
	registry   *Registry
	adapters   map[string]PartnerChainAdapter
	policy     NotifyPolicy
	publisher  eventbus.Publisher
	byWindow   map[uint64]*DistributionRecord
	governance float64 // governance-set fraction of revenue
	community  float64 // community-set fraction of revenue
}

// NewCoordinator constructs a Coordinator over an existing registry.
// governanceShare and communityShare are fractions of R reserved
// ahead of the per-partner split; publisher may be nil to disable
// external event publication.
func NewCoordinator(registry *Registry, policy NotifyPolicy, publisher eventbus.Publisher, governanceShare, communityShare float64) *Coordinator {
	return &Coordinator{
		registry:   registry,
		adapters:   make(map[string]PartnerChainAdapter),
		policy:     policy,
		publisher:  publisher,
		byWindow:   make(map[uint64]*DistributionRecord),
		governance: governanceShare,
		community:  communityShare,
	}
}

// RegisterAdapter wires a PartnerChainAdapter for a specific chain.
func (c *Coordinator) RegisterAdapter(chainID string, adapter PartnerChainAdapter) {
	c.adapters[chainID] = adapter
}

// SettleWindow distributes revenue R for auction window w across
// every active, mutually-partnered chain, notifies each partner, and
// returns the committed record. A window may only be settled once.
func (c *Coordinator) SettleWindow(ctx context.Context, w uint64, revenue int64, now time.Time) (*DistributionRecord, error) {
	if revenue < 0 {
		return nil, ErrNegativeRevenue
	}
	if _, ok := c.byWindow[w]; ok {
		return nil, ErrDistributionExists
	}

	active := c.registry.ActiveChains()
	sort.Slice(active, func(i, j int) bool { return active[i].ChainID < active[j].ChainID })

	var totalPartnerShare float64
	type eligible struct {
		chain Chain
		pct   float64
	}
	var chains []eligible
	for _, chain := range active {
		if _, ok := c.registry.MutualPartnershipFor(chain.ChainID); !ok {
			continue
		}
		chains = append(chains, eligible{chain: chain, pct: chain.SharePct})
		totalPartnerShare += chain.SharePct
	}
	if totalPartnerShare > 25 {
		return nil, ErrAggregateShareExceeded
	}

	shares := make([]Share, 0, len(chains))
	var distributed int64
	for _, e := range chains {
		amount := int64(math.Round(float64(revenue) * e.pct / 100))
		shares = append(shares, Share{PartnerChainID: e.chain.ChainID, Amount: amount})
		distributed += amount
	}

	governanceShare := int64(math.Round(float64(revenue) * c.governance))
	communityShare := int64(math.Round(float64(revenue) * c.community))
	homeShare := revenue - distributed - governanceShare - communityShare
	if homeShare < 0 {
		homeShare = 0
	}

	record := &DistributionRecord{
		DistributionID:  uuid.New(),
		Window:          w,
		Revenue:         revenue,
		Shares:          shares,
		HomeShare:       homeShare,
		CommunityShare:  communityShare,
		GovernanceShare: governanceShare,
		CreatedAt:       now,
	}
	root, err := distributionMerkleRoot(record)
	if err != nil {
		return nil, err
	}
	record.MerkleRoot = root
	c.byWindow[w] = record

	if c.publisher != nil {
		_ = c.publisher.Publish(ctx, eventbus.Event{
			Topic:     "distribution_records",
			ID:        record.DistributionID.String(),
			Fields:    distributionFields(record),
			Published: now,
		})
	}

	for _, share := range shares {
		c.notifyWithRetry(ctx, record, share)
	}

	return record, nil
}

// Record returns window w's distribution record, if settled.
func (c *Coordinator) Record(w uint64) (DistributionRecord, bool) {
	r, ok := c.byWindow[w]
	if !ok {
		return DistributionRecord{}, false
	}
	return *r, true
}

func (c *Coordinator) notifyWithRetry(ctx context.Context, record *DistributionRecord, share Share) NotifyResult {
	adapter, ok := c.adapters[share.PartnerChainID]
	if !ok {
		return NotifyResult{PartnerChainID: share.PartnerChainID, Err: ErrNoAdapter}
	}

	proof := distributionProof(record, share.PartnerChainID)

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(float64(c.policy.BaseBackoff) * math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return NotifyResult{PartnerChainID: share.PartnerChainID, Attempts: attempt, Err: ctx.Err()}
			}
		}

		ack, err := adapter.Notify(record.DistributionID, share.Amount, proof)
		if err != nil {
			lastErr = err
			continue
		}
		if ack {
			return NotifyResult{PartnerChainID: share.PartnerChainID, Acked: true, Attempts: attempt + 1}
		}
	}

	c.registry.MarkDegraded(share.PartnerChainID)
	return NotifyResult{PartnerChainID: share.PartnerChainID, Attempts: c.policy.MaxRetries + 1, Err: lastErr}
}

func distributionProof(record *DistributionRecord, chainID string) [][]byte {
	tree, err := distributionTree(record)
	if err != nil {
		return nil
	}
	leafIndex := -1
	for i, s := range record.Shares {
		if s.PartnerChainID == chainID {
			leafIndex = i
			break
		}
	}
	if leafIndex < 0 {
		return nil
	}
	proof, err := tree.GenerateProof(leafIndex)
	if err != nil {
		return nil
	}
	out := make([][]byte, len(proof.Path))
	for i, node := range proof.Path {
		decoded, err := hex.DecodeString(node.Hash)
		if err != nil {
			return nil
		}
		out[i] = decoded
	}
	return out
}

func distributionMerkleRoot(record *DistributionRecord) ([32]byte, error) {
	tree, err := distributionTree(record)
	if err != nil {
		return [32]byte{}, err
	}
	var root [32]byte
	copy(root[:], tree.Root())
	return root, nil
}

func distributionTree(record *DistributionRecord) (*merkle.Tree, error) {
	leaves := make([][]byte, len(record.Shares))
	for i, s := range record.Shares {
		h := shareLeafHash(record.Window, s)
		leaves[i] = h[:]
	}
	if len(leaves) == 0 {
		// A window with zero eligible partners still commits an
		// empty table under a fixed sentinel leaf.
		h := canon.Hash(canon.DomainDistribution, []byte("empty"))
		leaves = [][]byte{h[:]}
	}
	return merkle.BuildTree(leaves)
}

func shareLeafHash(window uint64, s Share) [32]byte {
	w := canon.NewWriter()
	w.U64(window).Str(s.PartnerChainID).I64(s.Amount)
	return canon.Hash(canon.DomainDistribution, w.Bytes())
}

func distributionFields(record *DistributionRecord) map[string]interface{} {
	shares := make([]map[string]interface{}, len(record.Shares))
	for i, s := range record.Shares {
		shares[i] = map[string]interface{}{"chain_id": s.PartnerChainID, "amount": s.Amount}
	}
	return map[string]interface{}{
		"distribution_id":  record.DistributionID.String(),
		"window":           record.Window,
		"revenue":          record.Revenue,
		"shares":           shares,
		"home_share":       record.HomeShare,
		"community_share":  record.CommunityShare,
		"governance_share": record.GovernanceShare,
	}
}
