package postgres

import (
	"context"
	"database/sql"
	"errors"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

// DriverRepository is a PostgreSQL implementation of repository.DriverRepository.
type DriverRepository struct {
	q Querier
}

// NewDriverRepository creates a new PostgreSQL driver repository.
func NewDriverRepository(db *sql.DB) *DriverRepository {
	return &DriverRepository{q: db}
}

// GetByID retrieves a driver by ID.
func (r *DriverRepository) GetByID(ctx context.Context, id string) (*domain.Driver, error) {
	query := `
		SELECT id, name, phone, additional_mile_rate, cancellation_rate, notify_by_sms
		FROM drivers WHERE id = $1
	`

	var driver domain.Driver
	var cancellationRate sql.NullFloat64

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&driver.ID,
		&driver.Name,
		&driver.Phone,
		&driver.AdditionalMileRate,
		&cancellationRate,
		&driver.NotifyBySMS,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	if cancellationRate.Valid {
		driver.CancellationRate = cancellationRate.Float64
	}

	return &driver, nil
}

// FacilityRepository is a PostgreSQL implementation of repository.FacilityRepository.
type FacilityRepository struct {
	q Querier
}

// NewFacilityRepository creates a new PostgreSQL facility repository.
func NewFacilityRepository(db *sql.DB) *FacilityRepository {
	return &FacilityRepository{q: db}
}

// GetByID retrieves a facility by ID.
func (r *FacilityRepository) GetByID(ctx context.Context, id string) (*domain.Facility, error) {
	query := `
		SELECT id, name, contact_email, notification_email
		FROM facilities WHERE id = $1
	`

	var facility domain.Facility
	var contactEmail, notificationEmail sql.NullString

	err := r.q.QueryRowContext(ctx, query, id).Scan(
		&facility.ID,
		&facility.Name,
		&contactEmail,
		&notificationEmail,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	facility.ContactEmail = fromNullString(contactEmail)
	facility.NotificationEmail = fromNullString(notificationEmail)

	return &facility, nil
}

// Ensure interfaces are satisfied.
var (
	_ repository.DriverRepository   = (*DriverRepository)(nil)
	_ repository.FacilityRepository = (*FacilityRepository)(nil)
)
