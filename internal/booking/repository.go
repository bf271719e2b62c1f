package booking

import (
	"context"
	"database/sql"
	"errors"
)

// Repository abstracts booking persistence.
type Repository interface {
	Insert(ctx context.Context, b Booking) error
	Get(ctx context.Context, id string) (Booking, error)
	Update(ctx context.Context, b Booking) error
	ListForUser(ctx context.Context, userID string) ([]Booking, error)
}

// PostgresRepo persists bookings in the bookings table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const bookingColumns = `
id, customer_id, companion_id, service, scheduled_at, minutes,
rate_per_minute_minor, currency, status, call_seconds, cost_minor, ended_by,
created_at, updated_at
`

func (r *PostgresRepo) Insert(ctx context.Context, b Booking) error {
	const q = `
INSERT INTO bookings (` + bookingColumns + `) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
)
`
	_, err := r.db.ExecContext(ctx, q,
		b.ID,
		b.CustomerID,
		b.CompanionID,
		b.Service,
		b.ScheduledAt,
		b.Minutes,
		b.RatePerMinuteMinor,
		b.Currency,
		b.Status,
		b.CallSeconds,
		b.CostMinor,
		b.EndedBy,
		b.CreatedAt,
		b.UpdatedAt,
	)
	return err
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (Booking, error) {
	const q = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	var b Booking
	if err := r.db.QueryRowContext(ctx, q, id).Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return Booking{}, ErrNotFound
		}
		return Booking{}, err
	}
	return b, nil
}

func (r *PostgresRepo) Update(ctx context.Context, b Booking) error {
	const q = `
UPDATE bookings
SET status = $2, call_seconds = $3, cost_minor = $4, ended_by = $5, updated_at = $6
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, b.ID, b.Status, b.CallSeconds, b.CostMinor, b.EndedBy, b.UpdatedAt)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ListForUser(ctx context.Context, userID string) ([]Booking, error) {
	const q = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE customer_id = $1 OR companion_id = $1
ORDER BY scheduled_at DESC
LIMIT 200
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		var b Booking
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
