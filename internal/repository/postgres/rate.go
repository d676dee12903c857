package postgres

import (
	"context"
	"database/sql"
	"errors"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

// RateTierRepository is a PostgreSQL implementation of
// repository.RateTierRepository.
type RateTierRepository struct {
	q Querier
}

// NewRateTierRepository creates a new PostgreSQL rate tier repository.
func NewRateTierRepository(db *sql.DB) *RateTierRepository {
	return &RateTierRepository{q: db}
}

// ListByDriver retrieves the tiers for a driver and service level, ordered
// by FromMiles ascending.
func (r *RateTierRepository) ListByDriver(ctx context.Context, driverID string, level domain.ServiceLevel) ([]*domain.RateTier, error) {
	query := `
		SELECT id, driver_id, service_level, from_miles, to_miles, flat_rate
		FROM rate_tiers
		WHERE driver_id = $1 AND service_level = $2
		ORDER BY from_miles ASC
	`

	rows, err := r.q.QueryContext(ctx, query, driverID, level)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tiers []*domain.RateTier
	for rows.Next() {
		var tier domain.RateTier
		if err := rows.Scan(
			&tier.ID,
			&tier.DriverID,
			&tier.ServiceLevel,
			&tier.FromMiles,
			&tier.ToMiles,
			&tier.FlatRate,
		); err != nil {
			return nil, err
		}
		tiers = append(tiers, &tier)
	}

	return tiers, rows.Err()
}

// PayoutRepository is a PostgreSQL implementation of repository.PayoutRepository.
type PayoutRepository struct {
	q Querier
}

// NewPayoutRepository creates a new PostgreSQL payout repository.
func NewPayoutRepository(db *sql.DB) *PayoutRepository {
	return &PayoutRepository{q: db}
}

// Create persists a new payout record.
func (r *PayoutRepository) Create(ctx context.Context, payout *domain.DriverPayout) error {
	query := `
		INSERT INTO driver_payouts (id, trip_id, driver_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.q.ExecContext(ctx, query,
		payout.ID,
		payout.TripID,
		payout.DriverID,
		payout.Amount,
		payout.Status,
		payout.CreatedAt,
	)

	return err
}

// GetByTrip retrieves the payout for a trip.
func (r *PayoutRepository) GetByTrip(ctx context.Context, tripID string) (*domain.DriverPayout, error) {
	query := `
		SELECT id, trip_id, driver_id, amount, status, created_at
		FROM driver_payouts WHERE trip_id = $1
		ORDER BY created_at DESC LIMIT 1
	`

	var payout domain.DriverPayout
	err := r.q.QueryRowContext(ctx, query, tripID).Scan(
		&payout.ID,
		&payout.TripID,
		&payout.DriverID,
		&payout.Amount,
		&payout.Status,
		&payout.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return &payout, nil
}

// Ensure interfaces are satisfied.
var (
	_ repository.RateTierRepository = (*RateTierRepository)(nil)
	_ repository.PayoutRepository   = (*PayoutRepository)(nil)
)
