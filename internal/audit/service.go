package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs internal audit information.
//
// IMPORTANT:
// - Audit is internal-only. Do not expose these records to end users by default.
// - Callers should treat audit logging as best-effort.

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.ActorUserID == "" && e.BookingID == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogAdminAction records an admin action (including hidden roles).
func (s *Service) LogAdminAction(ctx context.Context, actorUserID, actorRole, ip, message, walletID string, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeAdminAction,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		WalletID:    walletID,
		Message:     message,
		Metadata:    metadata,
	})
}

// LogBookingStatus records a booking status change.
func (s *Service) LogBookingStatus(ctx context.Context, actorUserID, actorRole, bookingID, from, to string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeBookingStatus,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		BookingID:   bookingID,
		Message:     fmt.Sprintf("booking %s -> %s", from, to),
	})
}

// LogCallEnded records a finalized call with its billed outcome.
func (s *Service) LogCallEnded(ctx context.Context, bookingID, endedBy string, elapsedSeconds int, costMinor int64) error {
	return s.Append(ctx, Event{
		Type:      EventTypeCallEnded,
		BookingID: bookingID,
		Message:   fmt.Sprintf("call ended by %s", endedBy),
		Metadata:  fmt.Sprintf(`{"elapsed_seconds":%d,"cost_minor":%d}`, elapsedSeconds, costMinor),
	})
}
