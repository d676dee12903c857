package repository

import (
	"context"

	"medtransit/internal/domain"
)

// DriverRepository provides read access to driver records. Driver record
// management is owned by separate admin tooling.
type DriverRepository interface {
	// GetByID retrieves a driver by ID.
	GetByID(ctx context.Context, id string) (*domain.Driver, error)
}

// FacilityRepository provides read access to facility records.
type FacilityRepository interface {
	// GetByID retrieves a facility by ID.
	GetByID(ctx context.Context, id string) (*domain.Facility, error)
}
