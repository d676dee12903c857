package postgres

import (
	"context"
	"database/sql"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

// HistoryRepository is a PostgreSQL implementation of repository.HistoryRepository.
type HistoryRepository struct {
	q Querier
}

// NewHistoryRepository creates a new PostgreSQL history repository.
func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{q: db}
}

// NewHistoryRepositoryWithTx creates a history repository using a transaction.
func NewHistoryRepositoryWithTx(tx *sql.Tx) *HistoryRepository {
	return &HistoryRepository{q: tx}
}

// Append persists a new history entry. There is deliberately no update or
// delete: the table is the durable audit trail.
func (r *HistoryRepository) Append(ctx context.Context, entry *domain.StatusHistoryEntry) error {
	query := `
		INSERT INTO status_history (id, trip_id, from_status, to_status, change_type, actor, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.q.ExecContext(ctx, query,
		entry.ID,
		entry.TripID,
		toNullString(string(entry.FromStatus)),
		entry.ToStatus,
		entry.ChangeType,
		entry.Actor,
		entry.Reason,
		entry.CreatedAt,
	)

	return err
}

// ListByTrip retrieves all entries for a trip, oldest first.
func (r *HistoryRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.StatusHistoryEntry, error) {
	query := `
		SELECT id, trip_id, from_status, to_status, change_type, actor, reason, created_at
		FROM status_history WHERE trip_id = $1 ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.StatusHistoryEntry
	for rows.Next() {
		var entry domain.StatusHistoryEntry
		var fromStatus sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.TripID,
			&fromStatus,
			&entry.ToStatus,
			&entry.ChangeType,
			&entry.Actor,
			&entry.Reason,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}

		entry.FromStatus = domain.TripStatus(fromNullString(fromStatus))
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Ensure HistoryRepository implements repository.HistoryRepository.
var _ repository.HistoryRepository = (*HistoryRepository)(nil)
