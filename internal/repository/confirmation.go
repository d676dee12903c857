package repository

import (
	"context"
	"time"

	"medtransit/internal/domain"
)

// ConfirmationRepository defines persistence for rider confirmation requests.
type ConfirmationRepository interface {
	// Create persists a new request. Returns ErrActiveConfirmationExists
	// when the trip already has a non-terminal request.
	Create(ctx context.Context, req *domain.ConfirmationRequest) error

	// GetByID retrieves a request by ID.
	GetByID(ctx context.Context, id string) (*domain.ConfirmationRequest, error)

	// GetActiveByTrip retrieves the trip's non-terminal request.
	// Returns nil if none exists.
	GetActiveByTrip(ctx context.Context, tripID string) (*domain.ConfirmationRequest, error)

	// Update persists changes to an existing request.
	Update(ctx context.Context, req *domain.ConfirmationRequest) error

	// ListOpenByPhone retrieves non-terminal requests (awaiting_response
	// or unclear) whose recipient matches either the raw or normalized
	// form of the address. A parked unclear request stays matchable so a
	// later clear reply can still resolve it.
	ListOpenByPhone(ctx context.Context, raw, normalized string) ([]*domain.ConfirmationRequest, error)

	// LatestByPhone retrieves the most recently created request for the
	// address regardless of status. Returns nil if none exists.
	LatestByPhone(ctx context.Context, raw, normalized string) (*domain.ConfirmationRequest, error)

	// ListExpired retrieves open requests (awaiting_response or unclear)
	// whose deadline has passed as of now.
	ListExpired(ctx context.Context, now time.Time) ([]*domain.ConfirmationRequest, error)
}
