// Copyright 2025 BPI Labs

package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bpinet/bpci/pkg/economy"
	"github.com/google/uuid"
)

// EconomyStore persists economy_jobs and economy_epoch_reports.
type EconomyStore struct {
	client *Client
}

// NewEconomyStore wraps client for economy-table access.
func NewEconomyStore(client *Client) *EconomyStore {
	return &EconomyStore{client: client}
}

// SaveJob upserts an EconomicJob under its job_id, attributed to the
// epoch it was settled in.
func (s *EconomyStore) SaveJob(ctx context.Context, epoch uint64, job economy.EconomicJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarshalRecord, err)
	}
	_, err = s.client.DB().ExecContext(ctx, `
		INSERT INTO economy_jobs (job_id, epoch, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id) DO UPDATE SET payload = EXCLUDED.payload`,
		job.JobID, epoch, payload)
	return err
}

// SaveEpochReport upserts an EpochReport under its epoch number.
func (s *EconomyStore) SaveEpochReport(ctx context.Context, report economy.EpochReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarshalRecord, err)
	}
	_, err = s.client.DB().ExecContext(ctx, `
		INSERT INTO economy_epoch_reports (epoch, payload)
		VALUES ($1, $2)
		ON CONFLICT (epoch) DO UPDATE SET payload = EXCLUDED.payload`,
		report.Epoch, payload)
	return err
}

// EpochReport loads the report for a given epoch.
func (s *EconomyStore) EpochReport(ctx context.Context, epoch uint64) (economy.EpochReport, error) {
	var payload []byte
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT payload FROM economy_epoch_reports WHERE epoch = $1`, epoch).Scan(&payload)
	if err == sql.ErrNoRows {
		return economy.EpochReport{}, ErrNotFound
	}
	if err != nil {
		return economy.EpochReport{}, err
	}
	var report economy.EpochReport
	if err := json.Unmarshal(payload, &report); err != nil {
		return economy.EpochReport{}, err
	}
	return report, nil
}

// JobsForEpoch returns every job ID recorded for a given epoch.
func (s *EconomyStore) JobsForEpoch(ctx context.Context, epoch uint64) ([]uuid.UUID, error) {
	rows, err := s.client.DB().QueryContext(ctx,
		`SELECT job_id FROM economy_jobs WHERE epoch = $1 ORDER BY job_id`, epoch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
