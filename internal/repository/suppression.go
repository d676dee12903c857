package repository

import (
	"context"

	"medtransit/internal/domain"
)

// SuppressionRepository defines persistence for channel opt-outs.
type SuppressionRepository interface {
	// Get retrieves the entry for a normalized address and channel.
	// Returns nil if the address has never opted out.
	Get(ctx context.Context, address string, channel domain.NotificationChannel) (*domain.SuppressionEntry, error)

	// Upsert creates or replaces the entry for its address and channel.
	Upsert(ctx context.Context, entry *domain.SuppressionEntry) error
}
