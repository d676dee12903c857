package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

// TripRepository is a PostgreSQL implementation of repository.TripRepository.
type TripRepository struct {
	q Querier
}

// NewTripRepository creates a new PostgreSQL trip repository.
func NewTripRepository(db *sql.DB) *TripRepository {
	return &TripRepository{q: db}
}

// NewTripRepositoryWithTx creates a trip repository using a transaction.
func NewTripRepositoryWithTx(tx *sql.Tx) *TripRepository {
	return &TripRepository{q: tx}
}

const tripColumns = `id, status, will_call, scheduled_pickup_at, picked_up_at, dropped_off_at,
	cancelled_at, driver_id, rider_id, rider_phone, facility_id, service_level, tags,
	pickup_address, dropoff_address, mileage_miles, cancel_reason, version, created_at`

// Create persists a new trip.
func (r *TripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	query := `
		INSERT INTO trips (` + tripColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	_, err := r.q.ExecContext(ctx, query,
		trip.ID,
		trip.Status,
		trip.WillCall,
		toNullTime(trip.ScheduledPickupAt),
		toNullTime(trip.PickedUpAt),
		toNullTime(trip.DroppedOffAt),
		toNullTime(trip.CancelledAt),
		toNullString(trip.DriverID),
		trip.RiderID,
		trip.RiderPhone,
		trip.FacilityID,
		trip.ServiceLevel,
		pq.Array(trip.Tags),
		trip.PickupAddress,
		trip.DropoffAddress,
		trip.MileageMiles,
		toNullString(trip.CancelReason),
		trip.Version,
		trip.CreatedAt,
	)

	return err
}

// GetByID retrieves a trip by ID.
func (r *TripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = $1`

	trip, err := scanTrip(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return trip, nil
}

// GetAll retrieves recent trips.
func (r *TripRepository) GetAll(ctx context.Context) ([]*domain.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips ORDER BY created_at DESC LIMIT 100`

	rows, err := r.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []*domain.Trip
	for rows.Next() {
		trip, err := scanTrip(rows)
		if err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}

	return trips, rows.Err()
}

// UpdateStatusCAS updates the trip's mutable fields guarded by the version
// column. Losing a race returns repository.ErrVersionConflict.
func (r *TripRepository) UpdateStatusCAS(ctx context.Context, trip *domain.Trip, expectedVersion int64) error {
	query := `
		UPDATE trips
		SET status = $1, scheduled_pickup_at = $2, picked_up_at = $3, dropped_off_at = $4,
		    cancelled_at = $5, driver_id = $6, cancel_reason = $7, version = version + 1
		WHERE id = $8 AND version = $9
	`

	result, err := r.q.ExecContext(ctx, query,
		trip.Status,
		toNullTime(trip.ScheduledPickupAt),
		toNullTime(trip.PickedUpAt),
		toNullTime(trip.DroppedOffAt),
		toNullTime(trip.CancelledAt),
		toNullString(trip.DriverID),
		toNullString(trip.CancelReason),
		trip.ID,
		expectedVersion,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		// Either the trip is gone or another writer bumped the version.
		var exists bool
		checkErr := r.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM trips WHERE id = $1)`, trip.ID).Scan(&exists)
		if checkErr != nil {
			return checkErr
		}
		if !exists {
			return repository.ErrNotFound
		}
		return repository.ErrVersionConflict
	}

	trip.Version = expectedVersion + 1
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (*domain.Trip, error) {
	var trip domain.Trip
	var scheduledAt, pickedUpAt, droppedOffAt, cancelledAt sql.NullTime
	var driverID, cancelReason sql.NullString
	var tags pq.StringArray

	err := row.Scan(
		&trip.ID,
		&trip.Status,
		&trip.WillCall,
		&scheduledAt,
		&pickedUpAt,
		&droppedOffAt,
		&cancelledAt,
		&driverID,
		&trip.RiderID,
		&trip.RiderPhone,
		&trip.FacilityID,
		&trip.ServiceLevel,
		&tags,
		&trip.PickupAddress,
		&trip.DropoffAddress,
		&trip.MileageMiles,
		&cancelReason,
		&trip.Version,
		&trip.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	trip.ScheduledPickupAt = fromNullTime(scheduledAt)
	trip.PickedUpAt = fromNullTime(pickedUpAt)
	trip.DroppedOffAt = fromNullTime(droppedOffAt)
	trip.CancelledAt = fromNullTime(cancelledAt)
	trip.DriverID = fromNullString(driverID)
	trip.CancelReason = fromNullString(cancelReason)
	trip.Tags = []string(tags)

	return &trip, nil
}

// Ensure TripRepository implements repository.TripRepository.
var _ repository.TripRepository = (*TripRepository)(nil)
