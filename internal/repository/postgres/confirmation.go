package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

// ConfirmationRepository is a PostgreSQL implementation of
// repository.ConfirmationRepository.
type ConfirmationRepository struct {
	q Querier
}

// NewConfirmationRepository creates a new PostgreSQL confirmation repository.
func NewConfirmationRepository(db *sql.DB) *ConfirmationRepository {
	return &ConfirmationRepository{q: db}
}

// NewConfirmationRepositoryWithTx creates a confirmation repository using a transaction.
func NewConfirmationRepositoryWithTx(tx *sql.Tx) *ConfirmationRepository {
	return &ConfirmationRepository{q: tx}
}

const confirmationColumns = `id, trip_id, status, recipient_phone, normalized_phone, expires_at,
	reply_text, reply_at, reply_from, channel, reprompt_count, created_at`

// Create persists a new request. A partial unique index on trip_id for
// non-terminal statuses enforces the one-active-request-per-trip invariant.
func (r *ConfirmationRepository) Create(ctx context.Context, req *domain.ConfirmationRequest) error {
	query := `
		INSERT INTO confirmation_requests (` + confirmationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.q.ExecContext(ctx, query,
		req.ID,
		req.TripID,
		req.Status,
		req.RecipientPhone,
		req.NormalizedPhone,
		req.ExpiresAt,
		toNullString(req.ReplyText),
		toNullTime(req.ReplyAt),
		toNullString(req.ReplyFrom),
		req.Channel,
		req.RepromptCount,
		req.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return repository.ErrActiveConfirmationExists
		}
		return err
	}

	return nil
}

// GetByID retrieves a request by ID.
func (r *ConfirmationRepository) GetByID(ctx context.Context, id string) (*domain.ConfirmationRequest, error) {
	query := `SELECT ` + confirmationColumns + ` FROM confirmation_requests WHERE id = $1`

	req, err := scanConfirmation(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return req, nil
}

// GetActiveByTrip retrieves the trip's non-terminal request.
func (r *ConfirmationRepository) GetActiveByTrip(ctx context.Context, tripID string) (*domain.ConfirmationRequest, error) {
	query := `
		SELECT ` + confirmationColumns + `
		FROM confirmation_requests
		WHERE trip_id = $1 AND status IN ($2, $3)
		LIMIT 1
	`

	req, err := scanConfirmation(r.q.QueryRowContext(ctx, query, tripID,
		domain.ConfirmationAwaitingResponse, domain.ConfirmationUnclear))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return req, nil
}

// Update persists changes to an existing request.
func (r *ConfirmationRepository) Update(ctx context.Context, req *domain.ConfirmationRequest) error {
	query := `
		UPDATE confirmation_requests
		SET status = $1, expires_at = $2, reply_text = $3, reply_at = $4, reply_from = $5,
		    channel = $6, reprompt_count = $7
		WHERE id = $8
	`

	result, err := r.q.ExecContext(ctx, query,
		req.Status,
		req.ExpiresAt,
		toNullString(req.ReplyText),
		toNullTime(req.ReplyAt),
		toNullString(req.ReplyFrom),
		req.Channel,
		req.RepromptCount,
		req.ID,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListOpenByPhone retrieves non-terminal requests whose recipient matches
// either the raw or the normalized address form. Unclear requests remain
// matchable until they expire.
func (r *ConfirmationRepository) ListOpenByPhone(ctx context.Context, raw, normalized string) ([]*domain.ConfirmationRequest, error) {
	query := `
		SELECT ` + confirmationColumns + `
		FROM confirmation_requests
		WHERE status IN ($1, $2) AND (recipient_phone = $3 OR normalized_phone = $4)
		ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query,
		domain.ConfirmationAwaitingResponse, domain.ConfirmationUnclear, raw, normalized)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*domain.ConfirmationRequest
	for rows.Next() {
		req, err := scanConfirmation(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

// LatestByPhone retrieves the most recently created request for the address
// regardless of status.
func (r *ConfirmationRepository) LatestByPhone(ctx context.Context, raw, normalized string) (*domain.ConfirmationRequest, error) {
	query := `
		SELECT ` + confirmationColumns + `
		FROM confirmation_requests
		WHERE recipient_phone = $1 OR normalized_phone = $2
		ORDER BY created_at DESC
		LIMIT 1
	`

	req, err := scanConfirmation(r.q.QueryRowContext(ctx, query, raw, normalized))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	return req, nil
}

// ListExpired retrieves open requests whose deadline has passed. Unclear
// requests are included so nothing outlives its deadline unresolved.
func (r *ConfirmationRepository) ListExpired(ctx context.Context, now time.Time) ([]*domain.ConfirmationRequest, error) {
	query := `
		SELECT ` + confirmationColumns + `
		FROM confirmation_requests
		WHERE status IN ($1, $2) AND expires_at < $3
	`

	rows, err := r.q.QueryContext(ctx, query, domain.ConfirmationAwaitingResponse, domain.ConfirmationUnclear, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reqs []*domain.ConfirmationRequest
	for rows.Next() {
		req, err := scanConfirmation(rows)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	return reqs, rows.Err()
}

func scanConfirmation(row rowScanner) (*domain.ConfirmationRequest, error) {
	var req domain.ConfirmationRequest
	var replyText, replyFrom sql.NullString
	var replyAt sql.NullTime

	err := row.Scan(
		&req.ID,
		&req.TripID,
		&req.Status,
		&req.RecipientPhone,
		&req.NormalizedPhone,
		&req.ExpiresAt,
		&replyText,
		&replyAt,
		&replyFrom,
		&req.Channel,
		&req.RepromptCount,
		&req.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.ReplyText = fromNullString(replyText)
	req.ReplyAt = fromNullTime(replyAt)
	req.ReplyFrom = fromNullString(replyFrom)

	return &req, nil
}

// Ensure ConfirmationRepository implements repository.ConfirmationRepository.
var _ repository.ConfirmationRepository = (*ConfirmationRepository)(nil)
