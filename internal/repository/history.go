package repository

import (
	"context"

	"medtransit/internal/domain"
)

// HistoryRepository defines the append-only audit log for trips.
// Entries are never updated or deleted.
type HistoryRepository interface {
	// Append persists a new history entry.
	Append(ctx context.Context, entry *domain.StatusHistoryEntry) error

	// ListByTrip retrieves all entries for a trip, oldest first.
	ListByTrip(ctx context.Context, tripID string) ([]*domain.StatusHistoryEntry, error)
}
