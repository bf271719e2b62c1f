package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"companion-platform/internal/booking"
	"companion-platform/internal/wallet"
)

// MemoryRepo is a simple in-memory reporting repository for tests and early development.
// It enforces user scoping on reads.

type MemoryRepo struct {
	mu sync.Mutex

	Bookings []booking.Booking
	Ledgers  []wallet.WalletLedger
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListBookings(ctx context.Context, userID string, from, to time.Time, companionID string) ([]booking.Booking, error) {
	if userID == "" {
		return nil, errors.New("user_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]booking.Booking, 0)
	for _, b := range r.Bookings {
		if b.CustomerID != userID && b.CompanionID != userID {
			continue
		}
		if !b.CreatedAt.IsZero() {
			if b.CreatedAt.Before(from) || !b.CreatedAt.Before(to) {
				continue
			}
		}
		if companionID != "" && b.CompanionID != companionID {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (r *MemoryRepo) ListWalletLedger(ctx context.Context, ownerUserID string, from, to time.Time, walletID string) ([]wallet.WalletLedger, error) {
	if ownerUserID == "" {
		return nil, errors.New("owner_user_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]wallet.WalletLedger, 0)
	for _, l := range r.Ledgers {
		if l.OwnerUserID != ownerUserID {
			continue
		}
		if !l.CreatedAt.IsZero() {
			if l.CreatedAt.Before(from) || !l.CreatedAt.Before(to) {
				continue
			}
		}
		if walletID != "" && l.WalletID != walletID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
