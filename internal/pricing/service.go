package pricing

import (
	"context"
	"errors"
	"time"
)

// Service resolves companion rates and prices bookings.
//
// Contract:
// - Rate lookup is effective-dated: the row in force at the quote time wins.
// - Pure calculation + repository lookups; no transport or media concerns.
type Service struct {
	repo  RateRepository
	clock func() time.Time
}

func NewService(repo RateRepository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

type QuoteRequest struct {
	CompanionID string
	Service     ServiceKind

	// Minutes is the number of call minutes the customer is purchasing.
	Minutes int

	// At determines which effective rate to use. If zero, service clock is used.
	At time.Time
}

// Quote is the priced result of a booking request. The rate is snapshotted
// onto the booking at creation so later rate changes never reprice it.
type Quote struct {
	CompanionID string
	Service     ServiceKind

	Currency string

	Minutes            int
	RatePerMinuteMinor int64
	TotalMinor         int64
}

var (
	ErrRateNotFound    = errors.New("rate not found")
	ErrInvalidQuoteReq = errors.New("invalid quote request")
)

// QuoteBooking prices a booking of the given length against the companion's
// effective rate.
func (s *Service) QuoteBooking(ctx context.Context, req QuoteRequest) (Quote, error) {
	if req.CompanionID == "" {
		return Quote{}, ErrInvalidQuoteReq
	}
	if req.Service != ServiceAudioCall && req.Service != ServiceVideoCall {
		return Quote{}, ErrInvalidQuoteReq
	}
	if req.Minutes <= 0 {
		return Quote{}, ErrInvalidQuoteReq
	}

	at := req.At
	if at.IsZero() {
		at = s.clock().UTC()
	}

	rate, ok, err := s.repo.FindServiceRate(ctx, req.CompanionID, req.Service, at)
	if err != nil {
		return Quote{}, err
	}
	if !ok {
		return Quote{}, ErrRateNotFound
	}

	return Quote{
		CompanionID:        req.CompanionID,
		Service:            req.Service,
		Currency:           rate.Currency,
		Minutes:            req.Minutes,
		RatePerMinuteMinor: rate.RatePerMinuteMinor,
		TotalMinor:         rate.RatePerMinuteMinor * int64(req.Minutes),
	}, nil
}

// RateRepository abstracts rate persistence.
// Implementation can be Postgres, cached, etc.
type RateRepository interface {
	FindServiceRate(ctx context.Context, companionID string, service ServiceKind, at time.Time) (ServiceRate, bool, error)
}
