package reporting

import (
	"context"
	"database/sql"
	"time"

	"companion-platform/internal/booking"
	"companion-platform/internal/wallet"
)

// PostgresRepo reads reporting data from the primary tables. Reports are
// read-only; all queries are scoped to the requesting user.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) ListBookings(ctx context.Context, userID string, from, to time.Time, companionID string) ([]booking.Booking, error) {
	const q = `
SELECT id, customer_id, companion_id, service, scheduled_at, minutes,
       rate_per_minute_minor, currency, status, call_seconds, cost_minor, ended_by,
       created_at, updated_at
FROM bookings
WHERE (customer_id = $1 OR companion_id = $1)
  AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR companion_id = $4)
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, userID, from, to, companionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []booking.Booking
	for rows.Next() {
		var b booking.Booking
		if err := rows.Scan(
			&b.ID,
			&b.CustomerID,
			&b.CompanionID,
			&b.Service,
			&b.ScheduledAt,
			&b.Minutes,
			&b.RatePerMinuteMinor,
			&b.Currency,
			&b.Status,
			&b.CallSeconds,
			&b.CostMinor,
			&b.EndedBy,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListWalletLedger(ctx context.Context, ownerUserID string, from, to time.Time, walletID string) ([]wallet.WalletLedger, error) {
	const q = `
SELECT id, owner_user_id, wallet_id, type, amount_minor, currency, external_ref, idempotency_key, metadata, created_at
FROM wallet_ledger
WHERE owner_user_id = $1
  AND created_at >= $2 AND created_at < $3
  AND ($4 = '' OR wallet_id = $4)
ORDER BY created_at
`
	rows, err := r.db.QueryContext(ctx, q, ownerUserID, from, to, walletID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wallet.WalletLedger
	for rows.Next() {
		var l wallet.WalletLedger
		if err := rows.Scan(
			&l.ID,
			&l.OwnerUserID,
			&l.WalletID,
			&l.Type,
			&l.AmountMinor,
			&l.Currency,
			&l.ExternalRef,
			&l.IdempotencyKey,
			&l.Metadata,
			&l.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
