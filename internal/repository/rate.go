package repository

import (
	"context"

	"medtransit/internal/domain"
)

// RateTierRepository provides read access to driver rate configuration.
// Writes are owned by facility-admin tooling.
type RateTierRepository interface {
	// ListByDriver retrieves the tiers for a driver and service level,
	// ordered by FromMiles ascending.
	ListByDriver(ctx context.Context, driverID string, level domain.ServiceLevel) ([]*domain.RateTier, error)
}

// PayoutRepository defines persistence for derived driver payouts.
type PayoutRepository interface {
	// Create persists a new payout record.
	Create(ctx context.Context, payout *domain.DriverPayout) error

	// GetByTrip retrieves the payout for a trip. Returns nil if the
	// trip has no payout yet.
	GetByTrip(ctx context.Context, tripID string) (*domain.DriverPayout, error)
}
