package repository

import (
	"context"

	"medtransit/internal/domain"
)

// TripRepository defines the persistence operations for trips.
type TripRepository interface {
	// Create persists a new trip.
	Create(ctx context.Context, trip *domain.Trip) error

	// GetByID retrieves a trip by ID.
	GetByID(ctx context.Context, id string) (*domain.Trip, error)

	// GetAll retrieves recent trips.
	GetAll(ctx context.Context) ([]*domain.Trip, error)

	// UpdateStatusCAS updates the trip's mutable fields only if the stored
	// version matches expectedVersion, bumping the version on success.
	// Returns ErrVersionConflict when a concurrent writer won.
	UpdateStatusCAS(ctx context.Context, trip *domain.Trip, expectedVersion int64) error
}
