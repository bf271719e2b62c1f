package pricing

import "time"

// Pricing models are companion-scoped. Each companion publishes per-minute
// rates for the services they offer. Amounts are expressed in minor units
// (e.g., cents) using int64.

// ServiceKind identifies a billable companion service.
type ServiceKind string

const (
	ServiceAudioCall ServiceKind = "audio_call"
	ServiceVideoCall ServiceKind = "video_call"
)

// ServiceRate defines the per-minute price a companion charges for a service.
type ServiceRate struct {
	ID          string `json:"id" db:"id"`
	CompanionID string `json:"companion_id" db:"companion_id"`

	Service ServiceKind `json:"service" db:"service"`

	Currency string `json:"currency" db:"currency"`

	// RatePerMinuteMinor is the price per started minute.
	RatePerMinuteMinor int64 `json:"rate_per_minute_minor" db:"rate_per_minute_minor"`

	// Effective window for the rate. Rates are never edited in place; a new
	// row supersedes the old one.
	EffectiveFrom time.Time  `json:"effective_from" db:"effective_from"`
	EffectiveTo   *time.Time `json:"effective_to,omitempty" db:"effective_to"`

	Status RateStatus `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type RateStatus string

const (
	RateStatusActive   RateStatus = "active"
	RateStatusInactive RateStatus = "inactive"
)
