package service

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"medtransit/internal/domain"
	"medtransit/internal/metrics"
	internalRedis "medtransit/internal/redis"
	"medtransit/internal/repository"
	"medtransit/internal/repository/postgres"
)

// TripLifecycleService enforces the trip status graph, keeps the audit
// trail, and triggers notification and payout side-effects on terminal
// transitions. Every mutation for a trip runs under that trip's
// distributed lock so concurrent transitions cannot both win.
type TripLifecycleService struct {
	db            *sql.DB
	tripRepo      repository.TripRepository
	historyRepo   repository.HistoryRepository
	driverRepo    repository.DriverRepository
	lockStore     internalRedis.LockStoreInterface
	dispatcher    *Dispatcher
	payoutService *PayoutService
	lockTTL       time.Duration
}

// NewTripLifecycleService creates a new TripLifecycleService.
func NewTripLifecycleService(
	db *sql.DB,
	tripRepo repository.TripRepository,
	historyRepo repository.HistoryRepository,
	driverRepo repository.DriverRepository,
	lockStore internalRedis.LockStoreInterface,
	dispatcher *Dispatcher,
	payoutService *PayoutService,
	lockTTL time.Duration,
) *TripLifecycleService {
	return &TripLifecycleService{
		db:            db,
		tripRepo:      tripRepo,
		historyRepo:   historyRepo,
		driverRepo:    driverRepo,
		lockStore:     lockStore,
		dispatcher:    dispatcher,
		payoutService: payoutService,
		lockTTL:       lockTTL,
	}
}

// withTripLock serializes a mutation against all other engine operations
// on the same trip.
func (s *TripLifecycleService) withTripLock(ctx context.Context, tripID string, fn func() error) error {
	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireTripLock(ctx, tripID, s.lockTTL)
		if err != nil {
			return err
		}
		if !locked {
			return ErrTripBusy
		}
		defer s.lockStore.ReleaseTripLock(ctx, tripID)
	}
	return fn()
}

// CreateTripRequest contains the parameters for creating a trip.
type CreateTripRequest struct {
	WillCall          bool
	ScheduledPickupAt time.Time
	RiderID           string
	RiderPhone        string
	FacilityID        string
	ServiceLevel      domain.ServiceLevel
	Tags              []string
	PickupAddress     string
	DropoffAddress    string
	MileageMiles      float64
	Actor             string
}

// CreateTrip creates a trip from a dispatcher action. A zero scheduled
// pickup time is only legal for will-call trips.
func (s *TripLifecycleService) CreateTrip(ctx context.Context, req CreateTripRequest) (*domain.Trip, error) {
	if !req.WillCall && req.ScheduledPickupAt.IsZero() {
		return nil, ErrMissingScheduledTime
	}

	initialStatus := domain.TripStatusPending
	if !req.ScheduledPickupAt.IsZero() {
		initialStatus = domain.TripStatusScheduled
	}

	trip := &domain.Trip{
		ID:                uuid.New().String(),
		Status:            initialStatus,
		WillCall:          req.WillCall,
		ScheduledPickupAt: req.ScheduledPickupAt,
		RiderID:           req.RiderID,
		RiderPhone:        req.RiderPhone,
		FacilityID:        req.FacilityID,
		ServiceLevel:      req.ServiceLevel,
		Tags:              req.Tags,
		PickupAddress:     req.PickupAddress,
		DropoffAddress:    req.DropoffAddress,
		MileageMiles:      req.MileageMiles,
		Version:           1,
		CreatedAt:         time.Now(),
	}

	creationEntry := &domain.StatusHistoryEntry{
		ID:         uuid.New().String(),
		TripID:     trip.ID,
		ToStatus:   trip.Status,
		ChangeType: domain.ChangeTypeStatus,
		Actor:      req.Actor,
		Reason:     "trip created",
		CreatedAt:  time.Now(),
	}

	// Without a database handle the write pair is not transactional.
	if s.db == nil {
		if err := s.tripRepo.Create(ctx, trip); err != nil {
			return nil, err
		}
		if err := s.historyRepo.Append(ctx, creationEntry); err != nil {
			return nil, err
		}
		return trip, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txTripRepo := postgres.NewTripRepositoryWithTx(tx)
	txHistoryRepo := postgres.NewHistoryRepositoryWithTx(tx)

	if err = txTripRepo.Create(ctx, trip); err != nil {
		return nil, err
	}

	if err = txHistoryRepo.Append(ctx, creationEntry); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	return trip, nil
}

// TransitionRequest contains the parameters for a status transition.
type TransitionRequest struct {
	TripID string
	Target domain.TripStatus
	Actor  string
	Reason string
}

// Transition moves a trip to a new status. An accepted transition writes
// exactly one history entry in the same transaction as the status change;
// a rejected one writes nothing and returns a typed error.
func (s *TripLifecycleService) Transition(ctx context.Context, req TransitionRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}

	var trip *domain.Trip
	err := s.withTripLock(ctx, req.TripID, func() error {
		var err error
		trip, err = s.transitionLocked(ctx, req)
		return err
	})
	if err != nil {
		if isTransitionRejection(err) {
			metrics.TransitionsRejectedTotal.Inc()
		}
		return nil, err
	}

	return trip, nil
}

// isTransitionRejection reports whether the error is a refusal of the
// requested transition itself. Lookup failures, lock contention, and
// storage errors do not count as rejections.
func isTransitionRejection(err error) bool {
	return errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrTripTerminal) ||
		errors.Is(err, ErrUnknownStatus) ||
		errors.Is(err, ErrMissingReason)
}

func (s *TripLifecycleService) transitionLocked(ctx context.Context, req TransitionRequest) (*domain.Trip, error) {
	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	if err := ValidateTransition(trip.Status, req.Target); err != nil {
		return nil, err
	}

	now := time.Now()
	prior := trip.Status

	switch req.Target {
	case domain.TripStatusCancelled, domain.TripStatusNoShow:
		if req.Reason == "" {
			return nil, ErrMissingReason
		}
		trip.CancelledAt = now
		trip.CancelReason = req.Reason
	case domain.TripStatusInProgress:
		if trip.PickedUpAt.IsZero() {
			trip.PickedUpAt = now
		}
	case domain.TripStatusDroppedOff, domain.TripStatusCompleted:
		if trip.DroppedOffAt.IsZero() {
			trip.DroppedOffAt = now
		}
	}

	trip.Status = req.Target

	if err := s.commitTransition(ctx, trip, prior, domain.ChangeTypeStatus, req.Actor, req.Reason); err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(req.Target)).Inc()
	s.runTerminalSideEffects(ctx, trip, req.Reason)

	return trip, nil
}

// commitTransition writes the status change and its audit entry in one
// transaction, guarded by the trip's version.
func (s *TripLifecycleService) commitTransition(ctx context.Context, trip *domain.Trip, prior domain.TripStatus, changeType domain.ChangeType, actor, reason string) error {
	expectedVersion := trip.Version

	entry := &domain.StatusHistoryEntry{
		ID:         uuid.New().String(),
		TripID:     trip.ID,
		FromStatus: prior,
		ToStatus:   trip.Status,
		ChangeType: changeType,
		Actor:      actor,
		Reason:     reason,
		CreatedAt:  time.Now(),
	}

	// Without a database handle the write pair is not transactional.
	if s.db == nil {
		if err := s.tripRepo.UpdateStatusCAS(ctx, trip, expectedVersion); err != nil {
			return err
		}
		return s.historyRepo.Append(ctx, entry)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	txTripRepo := postgres.NewTripRepositoryWithTx(tx)
	txHistoryRepo := postgres.NewHistoryRepositoryWithTx(tx)

	if err = txTripRepo.UpdateStatusCAS(ctx, trip, expectedVersion); err != nil {
		return err
	}

	if err = txHistoryRepo.Append(ctx, entry); err != nil {
		return err
	}

	return tx.Commit()
}

// runTerminalSideEffects fans out notifications and calculates the driver
// payout after a terminal transition committed. Failures here are logged
// and surfaced through job records and metrics; they never undo the
// transition.
func (s *TripLifecycleService) runTerminalSideEffects(ctx context.Context, trip *domain.Trip, reason string) {
	if !trip.Status.IsTerminal() {
		return
	}

	if s.dispatcher != nil {
		var eventType EventType
		switch trip.Status {
		case domain.TripStatusCancelled:
			eventType = EventTripCancelled
		case domain.TripStatusNoShow:
			eventType = EventTripNoShow
		}

		if eventType != "" {
			if err := s.dispatcher.Dispatch(ctx, Event{Type: eventType, Trip: trip, Reason: reason}); err != nil {
				log.Printf("notification dispatch failed: trip=%s: %v", trip.ID, err)
			}
		}
	}

	if s.payoutService != nil && trip.DriverID != "" {
		if _, err := s.payoutService.CalculateForTrip(ctx, trip); err != nil {
			log.Printf("payout calculation failed: trip=%s: %v", trip.ID, err)
		}
	}
}

// AssignDriverRequest contains the parameters for assigning a driver.
type AssignDriverRequest struct {
	TripID   string
	DriverID string
	Actor    string
}

// AssignDriver assigns a driver to a trip and records the assignment in
// the audit trail. A scheduled or pending trip moves to assigned.
func (s *TripLifecycleService) AssignDriver(ctx context.Context, req AssignDriverRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if req.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	var trip *domain.Trip
	err := s.withTripLock(ctx, req.TripID, func() error {
		var err error
		trip, err = s.tripRepo.GetByID(ctx, req.TripID)
		if err != nil {
			return err
		}

		if trip.Status.IsTerminal() {
			return ErrTripTerminal
		}

		if _, err = s.driverRepo.GetByID(ctx, req.DriverID); err != nil {
			return err
		}

		prior := trip.Status
		trip.DriverID = req.DriverID
		if trip.Status == domain.TripStatusPending || trip.Status == domain.TripStatusScheduled {
			trip.Status = domain.TripStatusAssigned
		}

		return s.commitTransition(ctx, trip, prior, domain.ChangeTypeAssignment, req.Actor, "driver "+req.DriverID+" assigned")
	})
	if err != nil {
		return nil, err
	}

	return trip, nil
}

// ReinstateRequest contains the parameters for re-opening a closed trip.
type ReinstateRequest struct {
	TripID string
	Target domain.TripStatus
	Actor  string
	Reason string
}

// Reinstate re-opens a terminally statused trip. This is the only path
// out of a terminal status and is logged as a distinct transition type.
func (s *TripLifecycleService) Reinstate(ctx context.Context, req ReinstateRequest) (*domain.Trip, error) {
	if req.TripID == "" {
		return nil, ErrInvalidTripID
	}
	if !domain.KnownTripStatuses[req.Target] {
		return nil, ErrUnknownStatus
	}
	if req.Target.IsTerminal() {
		return nil, ErrInvalidTransition
	}
	if req.Reason == "" {
		return nil, ErrMissingReason
	}

	var trip *domain.Trip
	err := s.withTripLock(ctx, req.TripID, func() error {
		var err error
		trip, err = s.tripRepo.GetByID(ctx, req.TripID)
		if err != nil {
			return err
		}

		if !trip.Status.IsTerminal() {
			return ErrTripNotTerminal
		}

		prior := trip.Status
		trip.Status = req.Target
		trip.CancelledAt = time.Time{}
		trip.CancelReason = ""

		return s.commitTransition(ctx, trip, prior, domain.ChangeTypeReinstate, req.Actor, req.Reason)
	})
	if err != nil {
		return nil, err
	}

	metrics.TransitionsTotal.WithLabelValues(string(req.Target)).Inc()
	return trip, nil
}

// GetTrip retrieves a trip by ID.
func (s *TripLifecycleService) GetTrip(ctx context.Context, tripID string) (*domain.Trip, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.tripRepo.GetByID(ctx, tripID)
}

// GetAllTrips retrieves recent trips.
func (s *TripLifecycleService) GetAllTrips(ctx context.Context) ([]*domain.Trip, error) {
	return s.tripRepo.GetAll(ctx)
}

// History retrieves the audit trail for a trip, oldest first.
func (s *TripLifecycleService) History(ctx context.Context, tripID string) ([]*domain.StatusHistoryEntry, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.historyRepo.ListByTrip(ctx, tripID)
}
