package reporting

import (
	"context"
	"errors"
	"strings"
	"time"

	"companion-platform/internal/booking"
	"companion-platform/internal/wallet"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// Repository abstracts data access for reporting.
//
// IMPORTANT:
// - Methods must enforce user scoping.
// - Implementations should query immutable sources when possible (wallet ledger, audit, bookings).

type Repository interface {
	ListBookings(ctx context.Context, userID string, from, to time.Time, companionID string) ([]booking.Booking, error)
	ListWalletLedger(ctx context.Context, ownerUserID string, from, to time.Time, walletID string) ([]wallet.WalletLedger, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service { return &Service{repo: repo} }

func (s *Service) BookingsSummary(ctx context.Context, req BookingsSummaryRequest) (BookingsSummary, error) {
	if req.UserID == "" {
		return BookingsSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return BookingsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return BookingsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListBookings(ctx, req.UserID, req.Range.From, req.Range.To, req.CompanionID)
	if err != nil {
		return BookingsSummary{}, err
	}

	out := BookingsSummary{UserID: req.UserID, CompanionID: req.CompanionID}
	for _, b := range rows {
		out.TotalBookings++
		out.TotalCallSeconds += b.CallSeconds
		out.TotalBilledMinor += b.CostMinor
		switch b.Status {
		case booking.StatusPending:
			out.PendingBookings++
		case booking.StatusConfirmed:
			out.ConfirmedBookings++
		case booking.StatusInCall:
			out.InCallBookings++
		case booking.StatusCompleted:
			out.CompletedCalls++
		case booking.StatusCanceled:
			out.CanceledBookings++
		}
	}
	if out.CompletedCalls > 0 {
		out.AverageCallSeconds = out.TotalCallSeconds / out.CompletedCalls
	}
	return out, nil
}

func (s *Service) SpendSummary(ctx context.Context, req SpendSummaryRequest) (SpendSummary, error) {
	if req.OwnerUserID == "" {
		return SpendSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return SpendSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return SpendSummary{}, errors.New("reporting: repository not configured")
	}

	ledgers, err := s.repo.ListWalletLedger(ctx, req.OwnerUserID, req.Range.From, req.Range.To, req.WalletID)
	if err != nil {
		return SpendSummary{}, err
	}

	out := SpendSummary{OwnerUserID: req.OwnerUserID, WalletID: req.WalletID, Currency: req.Currency}
	for _, l := range ledgers {
		// currency normalization: if request specified currency, filter; else populate from first row.
		if out.Currency == "" {
			out.Currency = l.Currency
		}
		if req.Currency != "" && l.Currency != req.Currency {
			continue
		}

		if l.AmountMinor > 0 {
			out.TotalCreditMinor += l.AmountMinor
		} else {
			out.TotalDebitMinor += -l.AmountMinor
		}

		switch {
		case l.ExternalRef == "admin_manual_credit":
			out.AdminAdjustMinor += l.AmountMinor
		case l.AmountMinor < 0 && strings.HasPrefix(l.IdempotencyKey, "call:"):
			out.CallDebitMinor += -l.AmountMinor
		}
	}
	out.NetDeltaMinor = out.TotalCreditMinor - out.TotalDebitMinor
	if out.Currency == "" {
		out.Currency = "UNKNOWN"
	}
	return out, nil
}

func (s *Service) CompanionEarnings(ctx context.Context, req EarningsRequest) (Earnings, error) {
	if req.CompanionID == "" {
		return Earnings{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return Earnings{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return Earnings{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListBookings(ctx, req.CompanionID, req.Range.From, req.Range.To, req.CompanionID)
	if err != nil {
		return Earnings{}, err
	}

	out := Earnings{CompanionID: req.CompanionID}
	total := 0
	for _, b := range rows {
		total++
		if b.Status != booking.StatusCompleted {
			continue
		}
		out.CompletedCalls++
		out.TotalCallSeconds += b.CallSeconds
		out.TotalEarnedMinor += b.CostMinor
	}
	if total > 0 {
		out.CompletionRate = float64(out.CompletedCalls) / float64(total)
	}
	return out, nil
}
