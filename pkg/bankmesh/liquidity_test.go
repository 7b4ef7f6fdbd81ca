// Copyright 2025 BPI Labs

package bankmesh

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func uuidZero() uuid.UUID { return uuid.Nil }

func TestLiquidityRequestOfferAccept(t *testing.T) {
	book := NewLiquidityBook()
	now := time.Unix(1000, 0)

	reqID := book.RequestLiquidity("GEN", 1000, 0.05, time.Hour, "bank-a", now)

	if err := book.SubmitOffer(reqID, LiquidityOffer{PeerID: "bank-b", Rate: 0.04, Amount: 1000}); err != nil {
		t.Fatalf("SubmitOffer: %v", err)
	}
	// An offer above the requester's max rate is silently dropped.
	if err := book.SubmitOffer(reqID, LiquidityOffer{PeerID: "bank-c", Rate: 0.10, Amount: 1000}); err != nil {
		t.Fatalf("SubmitOffer (over-rate): %v", err)
	}

	agreement, err := book.AcceptOffer(reqID, "bank-b", now.Add(time.Minute))
	if err != nil {
		t.Fatalf("AcceptOffer: %v", err)
	}
	if agreement.Lender != "bank-b" || agreement.Borrower != "bank-a" {
		t.Fatalf("unexpected agreement parties: %+v", agreement)
	}
	if agreement.Rate != 0.04 {
		t.Fatalf("expected accepted rate 0.04, got %v", agreement.Rate)
	}

	if _, ok := book.Agreement(agreement.ID); !ok {
		t.Fatalf("expected agreement to be retrievable")
	}

	// Request is closed after acceptance.
	if err := book.SubmitOffer(reqID, LiquidityOffer{PeerID: "bank-d", Rate: 0.01}); err != ErrRequestNotFound {
		t.Fatalf("expected ErrRequestNotFound on closed request, got %v", err)
	}
}

func TestAcceptOfferWithNoOffersFails(t *testing.T) {
	book := NewLiquidityBook()
	now := time.Unix(1000, 0)
	reqID := book.RequestLiquidity("GEN", 500, 0.05, time.Hour, "bank-a", now)
	if _, err := book.AcceptOffer(reqID, "bank-b", now); err != ErrNoOffers {
		t.Fatalf("expected ErrNoOffers, got %v", err)
	}
}

func TestSubmitOfferUnknownRequest(t *testing.T) {
	book := NewLiquidityBook()
	if err := book.SubmitOffer(uuidZero(), LiquidityOffer{PeerID: "bank-b"}); err != ErrRequestNotFound {
		t.Fatalf("expected ErrRequestNotFound for an unknown request id, got %v", err)
	}
}
