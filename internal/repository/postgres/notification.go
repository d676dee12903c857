package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

// NotificationJobRepository is a PostgreSQL implementation of
// repository.NotificationJobRepository.
type NotificationJobRepository struct {
	q Querier
}

// NewNotificationJobRepository creates a new PostgreSQL notification job repository.
func NewNotificationJobRepository(db *sql.DB) *NotificationJobRepository {
	return &NotificationJobRepository{q: db}
}

const jobColumns = `id, trip_id, category, channel, recipient, body, status,
	error_detail, provider_ref, created_at, sent_at`

// Create persists a new job.
func (r *NotificationJobRepository) Create(ctx context.Context, job *domain.NotificationJob) error {
	query := `
		INSERT INTO notification_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.q.ExecContext(ctx, query,
		job.ID,
		job.TripID,
		job.Category,
		job.Channel,
		job.Recipient,
		job.Body,
		job.Status,
		toNullString(job.ErrorDetail),
		toNullString(job.ProviderRef),
		job.CreatedAt,
		toNullTime(job.SentAt),
	)

	return err
}

// GetByID retrieves a job by ID.
func (r *NotificationJobRepository) GetByID(ctx context.Context, id string) (*domain.NotificationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM notification_jobs WHERE id = $1`

	job, err := scanJob(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	return job, nil
}

// ListByTrip retrieves all jobs for a trip, newest first.
func (r *NotificationJobRepository) ListByTrip(ctx context.Context, tripID string) ([]*domain.NotificationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM notification_jobs WHERE trip_id = $1 ORDER BY created_at DESC`

	rows, err := r.q.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.NotificationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// MarkSent records a successful delivery. The status guard keeps the job
// from transitioning more than once.
func (r *NotificationJobRepository) MarkSent(ctx context.Context, jobID, providerRef string) error {
	query := `
		UPDATE notification_jobs
		SET status = $1, provider_ref = $2, sent_at = $3
		WHERE id = $4 AND status = $5
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.NotificationJobSent, toNullString(providerRef), time.Now(), jobID, domain.NotificationJobPending)
	if err != nil {
		return err
	}

	return requireRow(result)
}

// MarkFailed records a failed delivery with the gateway's error text.
func (r *NotificationJobRepository) MarkFailed(ctx context.Context, jobID, errorDetail string) error {
	query := `
		UPDATE notification_jobs
		SET status = $1, error_detail = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.q.ExecContext(ctx, query,
		domain.NotificationJobFailed, errorDetail, jobID, domain.NotificationJobPending)
	if err != nil {
		return err
	}

	return requireRow(result)
}

func requireRow(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func scanJob(row rowScanner) (*domain.NotificationJob, error) {
	var job domain.NotificationJob
	var errorDetail, providerRef sql.NullString
	var sentAt sql.NullTime

	err := row.Scan(
		&job.ID,
		&job.TripID,
		&job.Category,
		&job.Channel,
		&job.Recipient,
		&job.Body,
		&job.Status,
		&errorDetail,
		&providerRef,
		&job.CreatedAt,
		&sentAt,
	)
	if err != nil {
		return nil, err
	}

	job.ErrorDetail = fromNullString(errorDetail)
	job.ProviderRef = fromNullString(providerRef)
	job.SentAt = fromNullTime(sentAt)

	return &job, nil
}

// Ensure NotificationJobRepository implements repository.NotificationJobRepository.
var _ repository.NotificationJobRepository = (*NotificationJobRepository)(nil)
