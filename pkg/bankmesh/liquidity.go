// Copyright 2025 BPI Labs

package bankmesh

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// LiquidityBook tracks open liquidity requests and the offers
// aggregated against them, independent of the settlement store since
// a request may never convert into a settlement.
type LiquidityBook struct {
	mu        sync.Mutex
	requests  map[uuid.UUID]*LiquidityRequest
	agreements map[uuid.UUID]*LiquiditySharingAgreement
}

// NewLiquidityBook returns an empty book.
func NewLiquidityBook() *LiquidityBook {
	return &LiquidityBook{
		requests:   make(map[uuid.UUID]*LiquidityRequest),
		agreements: make(map[uuid.UUID]*LiquiditySharingAgreement),
	}
}

// RequestLiquidity broadcasts a new liquidity ask and returns its id.
func (b *LiquidityBook) RequestLiquidity(token string, amount int64, maxRate float64, duration time.Duration, requester string, now time.Time) uuid.UUID {
	b.mu.Lock()
	defer b.mu.Unlock()

	req := &LiquidityRequest{
		ReqID:     uuid.New(),
		Token:     token,
		Amount:    amount,
		MaxRate:   maxRate,
		Duration:  duration,
		Requester: requester,
		CreatedAt: now,
	}
	b.requests[req.ReqID] = req
	return req.ReqID
}

// SubmitOffer aggregates one peer's offer against an open request.
func (b *LiquidityBook) SubmitOffer(reqID uuid.UUID, offer LiquidityOffer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[reqID]
	if !ok {
		return ErrRequestNotFound
	}
	if offer.Rate > req.MaxRate {
		return nil // outside requester's acceptable rate, silently not recorded
	}
	req.Offers = append(req.Offers, offer)
	return nil
}

// AcceptOffer accepts the named peer's offer against reqID, creating a
// LiquiditySharingAgreement and closing the request to further offers.
func (b *LiquidityBook) AcceptOffer(reqID uuid.UUID, peerID string, now time.Time) (*LiquiditySharingAgreement, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	req, ok := b.requests[reqID]
	if !ok {
		return nil, ErrRequestNotFound
	}
	if len(req.Offers) == 0 {
		return nil, ErrNoOffers
	}

	var chosen *LiquidityOffer
	for i := range req.Offers {
		if req.Offers[i].PeerID == peerID {
			chosen = &req.Offers[i]
			break
		}
	}
	if chosen == nil {
		return nil, ErrNoOffers
	}

	agreement := &LiquiditySharingAgreement{
		ID:        uuid.New(),
		ReqID:     reqID,
		Token:     req.Token,
		Amount:    chosen.Amount,
		Rate:      chosen.Rate,
		Duration:  req.Duration,
		Lender:    chosen.PeerID,
		Borrower:  req.Requester,
		CreatedAt: now,
	}
	b.agreements[agreement.ID] = agreement
	delete(b.requests, reqID)
	return agreement, nil
}

// Agreement returns a copy of agreementID's terms.
func (b *LiquidityBook) Agreement(agreementID uuid.UUID) (LiquiditySharingAgreement, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.agreements[agreementID]
	if !ok {
		return LiquiditySharingAgreement{}, false
	}
	return *a, true
}
