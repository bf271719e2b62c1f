package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"companion-platform/internal/audit"
	"companion-platform/internal/callsession"
	"companion-platform/internal/presence"
	"companion-platform/internal/pricing"
	"companion-platform/internal/wallet"
	"companion-platform/pkg/metrics"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("booking not found")
	ErrForbidden         = errors.New("not a participant of this booking")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid booking status transition")
)

// Quoter resolves companion rates at booking time.
type Quoter interface {
	QuoteBooking(ctx context.Context, req pricing.QuoteRequest) (pricing.Quote, error)
}

// Wallets is the subset of wallet operations bookings need.
type Wallets interface {
	WalletByOwner(ctx context.Context, ownerUserID string) (wallet.Wallet, error)
	Debit(ctx context.Context, ownerUserID, walletID string, req wallet.DebitRequest) (wallet.WalletLedger, wallet.Balance, error)
	Credit(ctx context.Context, ownerUserID, walletID string, req wallet.CreditRequest) (wallet.WalletLedger, wallet.Balance, error)
}

// PresenceStore exposes per-booking call presence.
type PresenceStore interface {
	PeerStatus(ctx context.Context, bookingID, forRole string) (presence.Status, error)
	Clear(ctx context.Context, bookingID string) error
}

// Service owns the booking lifecycle: create -> confirm -> in_call -> completed,
// with cancellation allowed before the call starts. It is also the billing
// boundary: FinalizeCall turns connected seconds into a wallet debit.
type Service struct {
	repo     Repository
	rates    Quoter
	wallets  Wallets
	presence PresenceStore
	auditor  *audit.Service
	logger   *slog.Logger

	clock func() time.Time
}

func NewService(repo Repository, rates Quoter, wallets Wallets, pres PresenceStore, auditor *audit.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		rates:    rates,
		wallets:  wallets,
		presence: pres,
		auditor:  auditor,
		logger:   logger,
		clock:    time.Now,
	}
}

type CreateRequest struct {
	CompanionID string              `json:"companion_id"`
	Service     pricing.ServiceKind `json:"service"`
	ScheduledAt time.Time           `json:"scheduled_at"`
	Minutes     int                 `json:"minutes"`
}

// Create quotes the companion's effective rate and inserts a pending booking
// with the rate snapshotted.
func (s *Service) Create(ctx context.Context, customerID string, req CreateRequest) (Booking, error) {
	if customerID == "" || req.CompanionID == "" {
		return Booking{}, ErrInvalidArgument
	}
	if customerID == req.CompanionID {
		return Booking{}, ErrInvalidArgument
	}
	if req.Minutes <= 0 {
		return Booking{}, ErrInvalidArgument
	}

	now := s.clock().UTC()
	q, err := s.rates.QuoteBooking(ctx, pricing.QuoteRequest{
		CompanionID: req.CompanionID,
		Service:     req.Service,
		Minutes:     req.Minutes,
		At:          now,
	})
	if err != nil {
		return Booking{}, err
	}

	b := Booking{
		ID:                 uuid.NewString(),
		CustomerID:         customerID,
		CompanionID:        req.CompanionID,
		Service:            req.Service,
		ScheduledAt:        req.ScheduledAt.UTC(),
		Minutes:            req.Minutes,
		RatePerMinuteMinor: q.RatePerMinuteMinor,
		Currency:           q.Currency,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Insert(ctx, b); err != nil {
		return Booking{}, err
	}
	s.logBookingStatus(ctx, customerID, "customer", b.ID, "", StatusPending)
	return b, nil
}

// Confirm is the companion accepting the booking.
func (s *Service) Confirm(ctx context.Context, companionID, bookingID string) (Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if b.CompanionID != companionID {
		return Booking{}, ErrForbidden
	}
	return s.transition(ctx, b, StatusConfirmed, companionID, "companion")
}

// Cancel is allowed for either participant before the call starts.
func (s *Service) Cancel(ctx context.Context, userID, bookingID string) (Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	role, ok := s.participantRole(b, userID)
	if !ok {
		return Booking{}, ErrForbidden
	}
	return s.transition(ctx, b, StatusCanceled, userID, role)
}

// GetForUser returns the booking if userID is one of its participants.
func (s *Service) GetForUser(ctx context.Context, userID, bookingID string) (Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if _, ok := s.participantRole(b, userID); !ok {
		return Booking{}, ErrForbidden
	}
	return b, nil
}

// Get returns a booking without participant checks. Admin surfaces only.
func (s *Service) Get(ctx context.Context, bookingID string) (Booking, error) {
	return s.repo.Get(ctx, bookingID)
}

func (s *Service) ListForUser(ctx context.Context, userID string) ([]Booking, error) {
	if userID == "" {
		return nil, ErrInvalidArgument
	}
	return s.repo.ListForUser(ctx, userID)
}

// MarkInCall flips a confirmed booking into in_call. Idempotent: a booking
// already in_call is returned unchanged, since both peers register presence.
func (s *Service) MarkInCall(ctx context.Context, bookingID string) (Booking, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if b.Status == StatusInCall {
		return b, nil
	}
	return s.transition(ctx, b, StatusInCall, "", "")
}

// CallStatus reports the remote peer's presence for a participant's poller.
// The remote side is resolved from the caller's role on the booking.
func (s *Service) CallStatus(ctx context.Context, userID, bookingID string) (presence.Status, error) {
	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return presence.Status{}, err
	}
	role, ok := s.participantRole(b, userID)
	if !ok {
		return presence.Status{}, ErrForbidden
	}
	if b.Status != StatusConfirmed && b.Status != StatusInCall {
		return presence.Status{}, ErrInvalidTransition
	}
	return s.presence.PeerStatus(ctx, bookingID, role)
}

// FinalizeCall bills actual connected time and completes the booking.
//
// Idempotent: a completed booking is returned as-is, and the wallet debit
// carries a per-booking idempotency key, so duplicate end notifications
// (client retry, both peers reporting) charge at most once.
func (s *Service) FinalizeCall(ctx context.Context, bookingID, endedBy string, elapsedSeconds int) (Booking, error) {
	if bookingID == "" || endedBy == "" || elapsedSeconds < 0 {
		return Booking{}, ErrInvalidArgument
	}

	b, err := s.repo.Get(ctx, bookingID)
	if err != nil {
		return Booking{}, err
	}
	if b.Status == StatusCompleted {
		return b, nil
	}
	if !canTransition(b.Status, StatusCompleted) {
		return Booking{}, ErrInvalidTransition
	}

	// Purchased minutes bound the billable time regardless of what the
	// client reports.
	if cap := b.Minutes * 60; elapsedSeconds > cap {
		elapsedSeconds = cap
	}
	cost := callsession.Cost(elapsedSeconds, b.RatePerMinuteMinor)

	if cost > 0 {
		if err := s.chargeCustomer(ctx, b, cost); err != nil {
			metrics.WalletDebitErrors.Inc()
			s.logger.Error("call charge failed",
				"booking_id", b.ID,
				"cost_minor", cost,
				"error", err,
			)
			// The booking still completes; the unpaid charge is left to
			// reconciliation. Blocking teardown on billing would strand
			// the session.
		} else {
			s.payCompanion(ctx, b, cost)
		}
	}

	now := s.clock().UTC()
	b.Status = StatusCompleted
	b.CallSeconds = elapsedSeconds
	b.CostMinor = cost
	b.EndedBy = endedBy
	b.UpdatedAt = now
	if err := s.repo.Update(ctx, b); err != nil {
		return Booking{}, err
	}

	metrics.CallSecondsBilled.Add(float64(elapsedSeconds))

	if s.presence != nil {
		if err := s.presence.Clear(ctx, b.ID); err != nil {
			s.logger.Debug("presence clear failed", "booking_id", b.ID, "error", err)
		}
	}
	if s.auditor != nil {
		if err := s.auditor.LogCallEnded(ctx, b.ID, endedBy, elapsedSeconds, cost); err != nil {
			s.logger.Debug("audit append failed", "booking_id", b.ID, "error", err)
		}
	}
	return b, nil
}

func (s *Service) chargeCustomer(ctx context.Context, b Booking, cost int64) error {
	w, err := s.wallets.WalletByOwner(ctx, b.CustomerID)
	if err != nil {
		return fmt.Errorf("resolve customer wallet: %w", err)
	}
	_, _, err = s.wallets.Debit(ctx, b.CustomerID, w.ID, wallet.DebitRequest{
		AmountMinor:    cost,
		Currency:       b.Currency,
		ExternalRef:    b.ID,
		IdempotencyKey: "call:" + b.ID,
	})
	if err != nil {
		return fmt.Errorf("debit customer wallet: %w", err)
	}
	return nil
}

// payCompanion is best-effort: a failed payout is logged for reconciliation
// and never blocks finalization.
func (s *Service) payCompanion(ctx context.Context, b Booking, cost int64) {
	w, err := s.wallets.WalletByOwner(ctx, b.CompanionID)
	if err != nil {
		s.logger.Error("resolve companion wallet failed", "booking_id", b.ID, "error", err)
		return
	}
	if _, _, err := s.wallets.Credit(ctx, b.CompanionID, w.ID, wallet.CreditRequest{
		AmountMinor:    cost,
		Currency:       b.Currency,
		ExternalRef:    b.ID,
		IdempotencyKey: "payout:call:" + b.ID,
	}); err != nil {
		s.logger.Error("companion payout failed", "booking_id", b.ID, "error", err)
	}
}

func (s *Service) transition(ctx context.Context, b Booking, to Status, actorID, actorRole string) (Booking, error) {
	if !canTransition(b.Status, to) {
		return Booking{}, ErrInvalidTransition
	}
	from := b.Status
	b.Status = to
	b.UpdatedAt = s.clock().UTC()
	if err := s.repo.Update(ctx, b); err != nil {
		return Booking{}, err
	}
	s.logBookingStatus(ctx, actorID, actorRole, b.ID, from, to)
	return b, nil
}

func (s *Service) participantRole(b Booking, userID string) (string, bool) {
	switch userID {
	case b.CustomerID:
		return presence.RoleCustomer, true
	case b.CompanionID:
		return presence.RoleCompanion, true
	default:
		return "", false
	}
}

func (s *Service) logBookingStatus(ctx context.Context, actorID, actorRole, bookingID string, from, to Status) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.LogBookingStatus(ctx, actorID, actorRole, bookingID, string(from), string(to)); err != nil {
		s.logger.Debug("audit append failed", "booking_id", bookingID, "error", err)
	}
}
