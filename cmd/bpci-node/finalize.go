// Copyright 2025 BPI Labs
//
// Drains consensus.Engine.Finalized(), persists each finalized block
// through ledger.Store, and on every EpochEveryBlocks boundary settles
// the accumulated blocks into the economy engine, executes any
// governance proposal whose timelock has elapsed against the economy's
// GovernanceParams, and distributes the epoch's fee revenue across
// partner chains. This realizes the node's own documented data flow:
// Workload -> RP -> MP -> CE -> LA -> EE/BM/PC.

package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/bpinet/bpci/pkg/bankmesh"
	"github.com/bpinet/bpci/pkg/consensus"
	"github.com/bpinet/bpci/pkg/economy"
	"github.com/bpinet/bpci/pkg/ledger"
	"github.com/bpinet/bpci/pkg/partner"
	"github.com/bpinet/bpci/pkg/telemetry"
	"github.com/google/uuid"
)

// finalizedBlockHeader is the JSON shape a block proposer embeds as a
// consensus.Proposal's payload; the finalization loop decodes it back
// into a ledger.Block once the round's commit certificate lands. The
// BLS commit itself travels separately on FinalizedBlock.Commit, not
// inside the payload, since only the engine that assembled quorum
// knows the final aggregate signature and bitmap.
type finalizedBlockHeader struct {
	PrevHash     string    `json:"prev_hash"`
	TxMerkleRoot string    `json:"tx_merkle_root"`
	StateRoot    string    `json:"state_root"`
	ReceiptsRoot string    `json:"receipts_root"`
	Timestamp    time.Time `json:"timestamp"`
	Proposer     string    `json:"proposer"`
}

func decodeHash32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// blockFromFinalized reconstructs the ledger.Block a FinalizedBlock
// represents, verifying that the decoded header actually hashes to the
// HeaderHash the commit certificate signed over.
func blockFromFinalized(fb consensus.FinalizedBlock) (*ledger.Block, error) {
	var hdr finalizedBlockHeader
	if err := json.Unmarshal(fb.Payload, &hdr); err != nil {
		return nil, fmt.Errorf("decode block header payload: %w", err)
	}
	prevHash, err := decodeHash32(hdr.PrevHash)
	if err != nil {
		return nil, fmt.Errorf("decode prev_hash: %w", err)
	}
	txRoot, err := decodeHash32(hdr.TxMerkleRoot)
	if err != nil {
		return nil, fmt.Errorf("decode tx_merkle_root: %w", err)
	}
	stateRoot, err := decodeHash32(hdr.StateRoot)
	if err != nil {
		return nil, fmt.Errorf("decode state_root: %w", err)
	}
	receiptsRoot, err := decodeHash32(hdr.ReceiptsRoot)
	if err != nil {
		return nil, fmt.Errorf("decode receipts_root: %w", err)
	}

	b := &ledger.Block{
		Height:       fb.Height,
		PrevHash:     prevHash,
		TxMerkleRoot: txRoot,
		StateRoot:    stateRoot,
		ReceiptsRoot: receiptsRoot,
		Timestamp:    hdr.Timestamp,
		Proposer:     hdr.Proposer,
		BlsCommit: ledger.BlsCommit{
			HeaderHash: fb.HeaderHash,
			Round:      fb.Round,
			Height:     fb.Height,
		},
	}
	if fb.Commit != nil {
		b.BlsCommit.ValidatorBitmap = fb.Commit.ValidatorBitmap
		if fb.Commit.AggregateSig != nil {
			b.BlsCommit.AggregateSig = fb.Commit.AggregateSig.Bytes()
		}
	}
	if b.Hash() != fb.HeaderHash {
		return nil, fmt.Errorf("decoded header does not hash to the committed header hash")
	}
	return b, nil
}

// blockToEconomicJob folds one finalized block into a single unit of
// economic activity for the epoch it lands in. A block's constituent
// step-receipts are already weighed and Merkle-committed upstream by
// pkg/receipt before they ever reach consensus, so the block itself —
// not each underlying receipt — is the job-level granularity EE
// settles against.
func blockToEconomicJob(b *ledger.Block) economy.EconomicJob {
	return economy.EconomicJob{
		JobID:       uuid.NewSHA1(uuid.Nil, b.BlsCommit.HeaderHash[:]),
		MinerID:     b.Proposer,
		Kind:        "block",
		ValueGold:   big.NewInt(1),
		Quality:     1.0,
		VerifiedAt:  b.Timestamp,
		ReceiptsRef: uuid.NewSHA1(uuid.Nil, b.ReceiptsRoot[:]),
	}
}

// minerWeightsFor builds an equal-weight distribution input across
// every distinct proposer that contributed a job this epoch; a
// proposer's PoE-normalized weight and prestige/diversity factors are
// not yet tracked per-validator, so each contributor is weighted
// identically rather than left out of NEX distribution entirely.
func minerWeightsFor(jobs []economy.EconomicJob) []economy.MinerWeightInput {
	seen := make(map[string]bool)
	var weights []economy.MinerWeightInput
	for _, j := range jobs {
		if seen[j.MinerID] {
			continue
		}
		seen[j.MinerID] = true
		weights = append(weights, economy.MinerWeightInput{
			MinerID:   j.MinerID,
			PoENorm:   1,
			Prestige:  1,
			Diversity: 1,
		})
	}
	return weights
}

// governanceProposalSpec is the JSON shape a bankmesh.Proposal of Type
// economyParamProposalType carries in its Spec field: a single
// governance-tunable economy parameter and the value it is being
// changed to.
type governanceProposalSpec struct {
	Key   economy.ParamKey `json:"key"`
	Value float64          `json:"value"`
}

const economyParamProposalType = "economy.param"

// applyApprovedGovernanceProposals executes every approved proposal
// whose timelock has elapsed and, for the ones that target an economy
// parameter, feeds the decoded change into params.UpdateParam. A
// proposal not yet past its timelock simply isn't executable yet and
// is left for the next epoch boundary to retry.
func applyApprovedGovernanceProposals(book *bankmesh.GovernanceBook, proposalIDs []uuid.UUID, params *economy.GovernanceParams, logger *telemetry.Logger, now time.Time) {
	for _, id := range proposalIDs {
		proposal, err := book.Execute(id, now)
		if err != nil {
			continue
		}
		if proposal.Type != economyParamProposalType {
			continue
		}
		var spec governanceProposalSpec
		if err := json.Unmarshal(proposal.Spec, &spec); err != nil {
			logger.WithError(err).WithFields(telemetry.Field{Key: "proposal_id", Value: id}).Error("decode governance proposal spec")
			continue
		}
		if err := params.UpdateParam(spec.Key, spec.Value); err != nil {
			logger.WithError(err).WithFields(
				telemetry.Field{Key: "proposal_id", Value: id},
				telemetry.Field{Key: "param", Value: spec.Key},
			).Error("apply governance parameter update")
			continue
		}
		logger.WithFields(
			telemetry.Field{Key: "proposal_id", Value: id},
			telemetry.Field{Key: "param", Value: spec.Key},
			telemetry.Field{Key: "value", Value: spec.Value},
		).Info("applied governance parameter update")
	}
}

// runFinalizationLoop is the node's central fan-out: it is the only
// consumer that reads consensus.Engine.Finalized() directly, and every
// other subsystem that needs finalized blocks — here, the economy
// engine's epoch settlement — consumes them via
// store.StreamFrom(ctx, height) instead of a second direct channel
// read, per the ledger's own fan-out design.
func runFinalizationLoop(
	ctx context.Context,
	engine *consensus.Engine,
	store *ledger.Store,
	epochEvery uint64,
	economyEngine *economy.Engine,
	governanceBook *bankmesh.GovernanceBook,
	pendingProposals func() []uuid.UUID,
	partnerCoordinator *partner.Coordinator,
	metrics *telemetry.Metrics,
	logger *telemetry.Logger,
) {
	if epochEvery == 0 {
		epochEvery = 1
	}

	stream, stop, err := store.StreamFrom(ctx, 0)
	if err != nil {
		logger.WithError(err).Error("subscribe to finalized block stream")
		return
	}
	defer stop()

	go drainFinalizedIntoStore(ctx, engine, store, logger)

	var epochJobs []economy.EconomicJob
	epochFee := big.NewInt(0)

	for {
		select {
		case <-ctx.Done():
			return
		case block, ok := <-stream:
			if !ok {
				return
			}
			job := blockToEconomicJob(block)
			epochJobs = append(epochJobs, job)

			if block.Height == 0 || block.Height%epochEvery != 0 {
				continue
			}

			epoch := block.Height / epochEvery
			report, err := economyEngine.ProcessEpoch(economy.EpochInputs{
				Epoch:        epoch,
				Jobs:         epochJobs,
				MinerWeights: minerWeightsFor(epochJobs),
			})
			if err != nil {
				logger.WithError(err).WithFields(telemetry.Field{Key: "epoch", Value: epoch}).Error("process economy epoch")
				epochJobs = nil
				continue
			}
			metrics.PoEIndex.Set(report.PoE.Phi)
			if report.NEXMinted != nil {
				metrics.EconomyMintedNEX.Add(float64(report.NEXMinted.Int64()))
			}
			if report.FLXBurned != nil {
				metrics.EconomyBurnedFLX.Add(float64(report.FLXBurned.Int64()))
			}
			logger.WithFields(
				telemetry.Field{Key: "epoch", Value: epoch},
				telemetry.Field{Key: "poe_phi", Value: report.PoE.Phi},
				telemetry.Field{Key: "jobs", Value: len(epochJobs)},
			).Info("settled economy epoch")

			applyApprovedGovernanceProposals(governanceBook, pendingProposals(), economyEngine.Params(), logger, time.Now())

			if partnerCoordinator != nil {
				epochFee.Set(report.TotalFee)
				if _, err := partnerCoordinator.SettleWindow(ctx, epoch, epochFee.Int64(), time.Now()); err != nil {
					logger.WithError(err).WithFields(telemetry.Field{Key: "epoch", Value: epoch}).Error("settle partner distribution window")
				}
			}

			epochJobs = nil
		}
	}
}

// drainFinalizedIntoStore is the sole direct reader of
// consensus.Engine.Finalized(); it turns each finalized round into a
// durable ledger.Block via store.Append, which in turn fans the block
// out to every StreamFrom subscriber, including this same process's
// own epoch-settlement loop.
func drainFinalizedIntoStore(ctx context.Context, engine *consensus.Engine, store *ledger.Store, logger *telemetry.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case fb, ok := <-engine.Finalized():
			if !ok {
				return
			}
			block, err := blockFromFinalized(fb)
			if err != nil {
				logger.WithError(err).WithFields(telemetry.Field{Key: "height", Value: fb.Height}).Error("decode finalized block")
				continue
			}
			if err := store.Append(block); err != nil {
				logger.WithError(err).WithFields(telemetry.Field{Key: "height", Value: fb.Height}).Error("append finalized block")
			}
		}
	}
}
