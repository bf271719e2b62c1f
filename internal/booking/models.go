package booking

import (
	"time"

	"companion-platform/internal/pricing"
)

// Booking is a paid reservation of a companion's time for a live call.
//
// The rate is snapshotted at creation time; later rate changes never reprice
// an existing booking. Minutes is the purchased ceiling for the call: the
// session enforces it, and FinalizeCall bills actual connected time against
// the snapshot.
//
// Money invariant reminder: the call charge references the booking id in the
// wallet ledger (external_ref + idempotency key) rather than mutating money
// fields here.
type Booking struct {
	ID          string `json:"id" db:"id"`
	CustomerID  string `json:"customer_id" db:"customer_id"`
	CompanionID string `json:"companion_id" db:"companion_id"`

	Service pricing.ServiceKind `json:"service" db:"service"`

	ScheduledAt time.Time `json:"scheduled_at" db:"scheduled_at"`

	// Minutes is the number of purchased call minutes (the session cap).
	Minutes int `json:"minutes" db:"minutes"`

	// Rate snapshot taken at creation.
	RatePerMinuteMinor int64  `json:"rate_per_minute_minor" db:"rate_per_minute_minor"`
	Currency           string `json:"currency" db:"currency"`

	Status Status `json:"status" db:"status"`

	// Call outcome, populated by FinalizeCall.
	CallSeconds int    `json:"call_seconds" db:"call_seconds"`
	CostMinor   int64  `json:"cost_minor" db:"cost_minor"`
	EndedBy     string `json:"ended_by,omitempty" db:"ended_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusInCall    Status = "in_call"
	StatusCompleted Status = "completed"
	StatusCanceled  Status = "canceled"
)

var validStatusTransitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCanceled},
	StatusConfirmed: {StatusInCall, StatusCompleted, StatusCanceled},
	StatusInCall:    {StatusCompleted},
	StatusCompleted: {},
	StatusCanceled:  {},
}

func canTransition(from, to Status) bool {
	for _, s := range validStatusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
