// Copyright 2025 BPI Labs

package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/bpinet/bpci/pkg/bankmesh"
	"github.com/google/uuid"
)

// BankMeshStore persists bankmesh_settlements, bankmesh_agreements,
// and bankmesh_proposals.
type BankMeshStore struct {
	client *Client
}

// NewBankMeshStore wraps client for bank-mesh table access.
func NewBankMeshStore(client *Client) *BankMeshStore {
	return &BankMeshStore{client: client}
}

// SaveSettlement upserts a settlement record.
func (s *BankMeshStore) SaveSettlement(ctx context.Context, st bankmesh.Settlement) error {
	payload, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarshalRecord, err)
	}
	_, err = s.client.DB().ExecContext(ctx, `
		INSERT INTO bankmesh_settlements (settlement_id, phase, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (settlement_id) DO UPDATE SET phase = EXCLUDED.phase, payload = EXCLUDED.payload`,
		st.ID, string(st.Phase), payload)
	return err
}

// Settlement loads a settlement by id.
func (s *BankMeshStore) Settlement(ctx context.Context, id uuid.UUID) (bankmesh.Settlement, error) {
	var payload []byte
	err := s.client.DB().QueryRowContext(ctx,
		`SELECT payload FROM bankmesh_settlements WHERE settlement_id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return bankmesh.Settlement{}, ErrNotFound
	}
	if err != nil {
		return bankmesh.Settlement{}, err
	}
	var st bankmesh.Settlement
	if err := json.Unmarshal(payload, &st); err != nil {
		return bankmesh.Settlement{}, err
	}
	return st, nil
}

// SaveAgreement inserts a liquidity-sharing agreement. Agreements are
// append-only once accepted, so this never updates an existing row.
func (s *BankMeshStore) SaveAgreement(ctx context.Context, a bankmesh.LiquiditySharingAgreement) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarshalRecord, err)
	}
	_, err = s.client.DB().ExecContext(ctx, `
		INSERT INTO bankmesh_agreements (agreement_id, payload)
		VALUES ($1, $2)
		ON CONFLICT (agreement_id) DO NOTHING`,
		a.ID, payload)
	return err
}

// SaveProposal upserts a governance proposal record.
func (s *BankMeshStore) SaveProposal(ctx context.Context, p bankmesh.Proposal) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMarshalRecord, err)
	}
	_, err = s.client.DB().ExecContext(ctx, `
		INSERT INTO bankmesh_proposals (proposal_id, status, payload)
		VALUES ($1, $2, $3)
		ON CONFLICT (proposal_id) DO UPDATE SET status = EXCLUDED.status, payload = EXCLUDED.payload`,
		p.ID, string(p.Status), payload)
	return err
}
