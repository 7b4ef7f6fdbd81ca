// Copyright 2025 BPI Labs

package pgstore

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/bpinet/bpci/pkg/economy"
	"github.com/google/uuid"
)

func TestSaveAndLoadEpochReport(t *testing.T) {
	client := newTestClient(t)
	if err := client.MigrateUp(context.Background()); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	store := NewEconomyStore(client)
	ctx := context.Background()

	report := economy.EpochReport{
		Epoch:          42,
		TotalFee:       big.NewInt(1000),
		TotalLocked:    big.NewInt(400),
		TotalSpendable: big.NewInt(500),
		TotalTreasury:  big.NewInt(100),
		NEXMinted:      big.NewInt(0),
		FLXMinted:      big.NewInt(0),
		FLXBurned:      big.NewInt(0),
		Time:           time.Now().UTC().Truncate(time.Second),
	}
	if err := store.SaveEpochReport(ctx, report); err != nil {
		t.Fatalf("SaveEpochReport: %v", err)
	}

	got, err := store.EpochReport(ctx, 42)
	if err != nil {
		t.Fatalf("EpochReport: %v", err)
	}
	if got.Epoch != report.Epoch {
		t.Errorf("epoch mismatch: want %d, got %d", report.Epoch, got.Epoch)
	}
	if got.TotalFee.Cmp(report.TotalFee) != 0 {
		t.Errorf("total fee mismatch: want %s, got %s", report.TotalFee, got.TotalFee)
	}

	// Re-saving the same epoch overwrites rather than duplicates.
	report.TotalFee = big.NewInt(2000)
	if err := store.SaveEpochReport(ctx, report); err != nil {
		t.Fatalf("second SaveEpochReport: %v", err)
	}
	got, err = store.EpochReport(ctx, 42)
	if err != nil {
		t.Fatalf("EpochReport after overwrite: %v", err)
	}
	if got.TotalFee.Cmp(big.NewInt(2000)) != 0 {
		t.Errorf("expected overwritten total fee 2000, got %s", got.TotalFee)
	}
}

func TestEpochReportNotFound(t *testing.T) {
	client := newTestClient(t)
	if err := client.MigrateUp(context.Background()); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	store := NewEconomyStore(client)

	_, err := store.EpochReport(context.Background(), 999999)
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSaveJobAndListByEpoch(t *testing.T) {
	client := newTestClient(t)
	if err := client.MigrateUp(context.Background()); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	store := NewEconomyStore(client)
	ctx := context.Background()

	const epoch = uint64(7)
	var jobIDs []uuid.UUID
	for i := 0; i < 3; i++ {
		job := economy.EconomicJob{
			JobID:      uuid.New(),
			MinerID:    "miner-1",
			Kind:       "storage",
			ValueGold:  big.NewInt(int64(100 * (i + 1))),
			Quality:    0.9,
			VerifiedAt: time.Now(),
		}
		if err := store.SaveJob(ctx, epoch, job); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
		jobIDs = append(jobIDs, job.JobID)
	}

	got, err := store.JobsForEpoch(ctx, epoch)
	if err != nil {
		t.Fatalf("JobsForEpoch: %v", err)
	}
	if len(got) != len(jobIDs) {
		t.Fatalf("expected %d jobs, got %d", len(jobIDs), len(got))
	}
}
