package pricing

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo reads companion service rates from the service_rates table.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) FindServiceRate(ctx context.Context, companionID string, service ServiceKind, at time.Time) (ServiceRate, bool, error) {
	const q = `
SELECT id, companion_id, service, currency, rate_per_minute_minor,
       effective_from, effective_to, status, created_at, updated_at
FROM service_rates
WHERE companion_id = $1
  AND service = $2
  AND status = 'active'
  AND effective_from <= $3
  AND (effective_to IS NULL OR effective_to > $3)
ORDER BY effective_from DESC
LIMIT 1
`
	var p ServiceRate
	err := r.db.QueryRowContext(ctx, q, companionID, service, at).Scan(
		&p.ID,
		&p.CompanionID,
		&p.Service,
		&p.Currency,
		&p.RatePerMinuteMinor,
		&p.EffectiveFrom,
		&p.EffectiveTo,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ServiceRate{}, false, nil
		}
		return ServiceRate{}, false, err
	}
	return p, true, nil
}
