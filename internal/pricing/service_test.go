package pricing

import (
	"context"
	"testing"
	"time"
)

func TestQuoteBooking(t *testing.T) {
	repo := &MemoryRepo{Rates: []ServiceRate{
		{
			ID:                 "r1",
			CompanionID:        "comp-1",
			Service:            ServiceVideoCall,
			Currency:           "USD",
			RatePerMinuteMinor: 5000,
			EffectiveFrom:      time.Unix(0, 0),
			Status:             RateStatusActive,
		},
	}}
	svc := NewService(repo)

	q, err := svc.QuoteBooking(context.Background(), QuoteRequest{
		CompanionID: "comp-1",
		Service:     ServiceVideoCall,
		Minutes:     10,
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.TotalMinor != 50000 {
		t.Fatalf("expected 50000, got %d", q.TotalMinor)
	}
	if q.Currency != "USD" || q.RatePerMinuteMinor != 5000 {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestQuoteBooking_NoRate(t *testing.T) {
	svc := NewService(&MemoryRepo{})
	_, err := svc.QuoteBooking(context.Background(), QuoteRequest{
		CompanionID: "comp-1",
		Service:     ServiceAudioCall,
		Minutes:     5,
	})
	if err != ErrRateNotFound {
		t.Fatalf("expected ErrRateNotFound, got %v", err)
	}
}

func TestQuoteBooking_PicksMostRecentEffectiveRate(t *testing.T) {
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cut := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	repo := &MemoryRepo{Rates: []ServiceRate{
		{ID: "r1", CompanionID: "comp-1", Service: ServiceAudioCall, Currency: "USD",
			RatePerMinuteMinor: 1000, EffectiveFrom: old, EffectiveTo: &cut, Status: RateStatusActive},
		{ID: "r2", CompanionID: "comp-1", Service: ServiceAudioCall, Currency: "USD",
			RatePerMinuteMinor: 2000, EffectiveFrom: cut, Status: RateStatusActive},
	}}
	svc := NewService(repo)

	q, err := svc.QuoteBooking(context.Background(), QuoteRequest{
		CompanionID: "comp-1",
		Service:     ServiceAudioCall,
		Minutes:     1,
		At:          time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	if q.RatePerMinuteMinor != 2000 {
		t.Fatalf("expected superseding rate 2000, got %d", q.RatePerMinuteMinor)
	}
}

func TestQuoteBooking_RejectsInvalid(t *testing.T) {
	svc := NewService(&MemoryRepo{})
	if _, err := svc.QuoteBooking(context.Background(), QuoteRequest{Service: ServiceAudioCall, Minutes: 1}); err != ErrInvalidQuoteReq {
		t.Fatalf("expected ErrInvalidQuoteReq, got %v", err)
	}
	if _, err := svc.QuoteBooking(context.Background(), QuoteRequest{CompanionID: "c", Service: "chat", Minutes: 1}); err != ErrInvalidQuoteReq {
		t.Fatalf("expected ErrInvalidQuoteReq, got %v", err)
	}
	if _, err := svc.QuoteBooking(context.Background(), QuoteRequest{CompanionID: "c", Service: ServiceAudioCall, Minutes: 0}); err != ErrInvalidQuoteReq {
		t.Fatalf("expected ErrInvalidQuoteReq, got %v", err)
	}
}
