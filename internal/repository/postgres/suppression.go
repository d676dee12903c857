package postgres

import (
	"context"
	"database/sql"
	"errors"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

// SuppressionRepository is a PostgreSQL implementation of
// repository.SuppressionRepository.
type SuppressionRepository struct {
	q Querier
}

// NewSuppressionRepository creates a new PostgreSQL suppression repository.
func NewSuppressionRepository(db *sql.DB) *SuppressionRepository {
	return &SuppressionRepository{q: db}
}

// Get retrieves the entry for a normalized address and channel.
func (r *SuppressionRepository) Get(ctx context.Context, address string, channel domain.NotificationChannel) (*domain.SuppressionEntry, error) {
	query := `
		SELECT address, channel, suppressed, suppressed_at, resubscribed_at
		FROM suppressions WHERE address = $1 AND channel = $2
	`

	var entry domain.SuppressionEntry
	var suppressedAt, resubscribedAt sql.NullTime

	err := r.q.QueryRowContext(ctx, query, address, channel).Scan(
		&entry.Address,
		&entry.Channel,
		&entry.Suppressed,
		&suppressedAt,
		&resubscribedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	entry.SuppressedAt = fromNullTime(suppressedAt)
	entry.ResubscribedAt = fromNullTime(resubscribedAt)

	return &entry, nil
}

// Upsert creates or replaces the entry for its address and channel.
func (r *SuppressionRepository) Upsert(ctx context.Context, entry *domain.SuppressionEntry) error {
	query := `
		INSERT INTO suppressions (address, channel, suppressed, suppressed_at, resubscribed_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address, channel) DO UPDATE
		SET suppressed = EXCLUDED.suppressed,
		    suppressed_at = EXCLUDED.suppressed_at,
		    resubscribed_at = EXCLUDED.resubscribed_at
	`

	_, err := r.q.ExecContext(ctx, query,
		entry.Address,
		entry.Channel,
		entry.Suppressed,
		toNullTime(entry.SuppressedAt),
		toNullTime(entry.ResubscribedAt),
	)

	return err
}

// Ensure SuppressionRepository implements repository.SuppressionRepository.
var _ repository.SuppressionRepository = (*SuppressionRepository)(nil)
