package repository

import (
	"context"

	"medtransit/internal/domain"
)

// NotificationJobRepository defines persistence for outbound notification jobs.
type NotificationJobRepository interface {
	// Create persists a new job.
	Create(ctx context.Context, job *domain.NotificationJob) error

	// GetByID retrieves a job by ID.
	GetByID(ctx context.Context, id string) (*domain.NotificationJob, error)

	// ListByTrip retrieves all jobs for a trip, newest first.
	ListByTrip(ctx context.Context, tripID string) ([]*domain.NotificationJob, error)

	// MarkSent records a successful delivery. A job transitions at most
	// once out of pending.
	MarkSent(ctx context.Context, jobID, providerRef string) error

	// MarkFailed records a failed delivery with the gateway's error text.
	MarkFailed(ctx context.Context, jobID, errorDetail string) error
}
