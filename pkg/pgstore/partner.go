// Copyright 2025 BPI Labs

package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bpinet/bpci/pkg/partner"
	"github.com/google/uuid"
)

// PartnerStore persists partner_partnerships and
// partner_distributions, the latter indexed by (window, distribution_id)
// per the spec's persisted-state layout.
type PartnerStore struct {
	client *Client
}

// NewPartnerStore wraps client for partner-table access.
func NewPartnerStore(client *Client) *PartnerStore {
	return &PartnerStore{client: client}
}

// SavePartnership upserts a partnership record.
func (s *PartnerStore) SavePartnership(ctx context.Context, p partner.Partnership) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarshalRecord, err)
	}
	_, err = s.client.DB().ExecContext(ctx, `
		INSERT INTO partner_partnerships (partnership_id, partner_chain_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (partnership_id) DO UPDATE SET payload = EXCLUDED.payload`,
		p.ID, p.PartnerChainID, payload)
	return err
}

// SaveDistribution inserts a distribution record. Distribution
// records are append-only: re-saving an existing distribution_id is a
// no-op. One settlement per window is enforced by partner.Coordinator;
// the table's unique (window_id, distribution_id) constraint does not
// by itself reject a second distribution id for the same window.
func (s *PartnerStore) SaveDistribution(ctx context.Context, d partner.DistributionRecord) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarshalRecord, err)
	}
	_, err = s.client.DB().ExecContext(ctx, `
		INSERT INTO partner_distributions (distribution_id, window_id, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (distribution_id) DO NOTHING`,
		d.DistributionID, d.Window, payload)
	return err
}

// DistributionForWindow loads the distribution record settled for a
// given auction window, if any.
func (s *PartnerStore) DistributionForWindow(ctx context.Context, window uint64) (partner.DistributionRecord, error) {
	var payload []byte
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT payload FROM partner_distributions WHERE window_id = $1`, window).Scan(&payload)
	if err == sql.ErrNoRows {
		return partner.DistributionRecord{}, ErrNotFound
	}
	if err != nil {
		return partner.DistributionRecord{}, err
	}
	var d partner.DistributionRecord
	if err := json.Unmarshal(payload, &d); err != nil {
		return partner.DistributionRecord{}, err
	}
	return d, nil
}

// DistributionsForPartner returns every distribution id that included
// a given partner chain, newest window first.
func (s *PartnerStore) DistributionsForPartner(ctx context.Context, chainID string) ([]uuid.UUID, error) {
	rows, err := s.client.DB().QueryContext(ctx, `
		SELECT distribution_id FROM partner_distributions d
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(d.payload -> 'Shares') share
			WHERE share ->> 'PartnerChainID' = $1
		)
		ORDER BY window_id DESC`, chainID)
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
