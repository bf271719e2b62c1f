package reporting

import "time"

// Common filtering inputs.

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// BookingsSummaryRequest requests aggregated booking/call metrics for a user
// (as customer or companion). UserID is required.

type BookingsSummaryRequest struct {
	UserID      string    `json:"user_id"`
	Range       TimeRange `json:"range"`
	CompanionID string    `json:"companion_id,omitempty"`
}

type BookingsSummary struct {
	UserID      string `json:"user_id"`
	CompanionID string `json:"companion_id,omitempty"`

	TotalBookings     int `json:"total_bookings"`
	PendingBookings   int `json:"pending_bookings"`
	ConfirmedBookings int `json:"confirmed_bookings"`
	InCallBookings    int `json:"in_call_bookings"`
	CompletedCalls    int `json:"completed_calls"`
	CanceledBookings  int `json:"canceled_bookings"`

	TotalCallSeconds   int `json:"total_call_seconds"`
	AverageCallSeconds int `json:"average_call_seconds"`

	TotalBilledMinor int64 `json:"total_billed_minor"`
}

// SpendSummaryRequest requests aggregated spend metrics.
// Spend is derived from immutable wallet ledger entries scoped to the owner.

type SpendSummaryRequest struct {
	OwnerUserID string    `json:"owner_user_id"`
	Range       TimeRange `json:"range"`
	WalletID    string    `json:"wallet_id,omitempty"`
	Currency    string    `json:"currency,omitempty"`
}

type SpendSummary struct {
	OwnerUserID string `json:"owner_user_id"`
	WalletID    string `json:"wallet_id,omitempty"`
	Currency    string `json:"currency"`

	TotalDebitMinor  int64 `json:"total_debit_minor"`
	TotalCreditMinor int64 `json:"total_credit_minor"`
	NetDeltaMinor    int64 `json:"net_delta_minor"`

	CallDebitMinor   int64 `json:"call_debit_minor"`
	AdminAdjustMinor int64 `json:"admin_adjust_minor"`
}

// EarningsRequest captures a companion's earnings over completed calls.

type EarningsRequest struct {
	CompanionID string    `json:"companion_id"`
	Range       TimeRange `json:"range"`
}

type Earnings struct {
	CompanionID string `json:"companion_id"`

	CompletedCalls   int     `json:"completed_calls"`
	TotalCallSeconds int     `json:"total_call_seconds"`
	TotalEarnedMinor int64   `json:"total_earned_minor"`
	CompletionRate   float64 `json:"completion_rate"`
}
