package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"medtransit/internal/domain"
)

func newMockConfirmationRepo(t *testing.T) (*ConfirmationRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return NewConfirmationRepository(db), mock
}

func confirmationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "trip_id", "status", "recipient_phone", "normalized_phone", "expires_at",
		"reply_text", "reply_at", "reply_from", "channel", "reprompt_count", "created_at",
	})
}

func TestConfirmationRepository_ListOpenByPhone_IncludesUnclear(t *testing.T) {
	repo, mock := newMockConfirmationRepo(t)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM confirmation_requests").
		WithArgs(
			string(domain.ConfirmationAwaitingResponse),
			string(domain.ConfirmationUnclear),
			"+15551234567", "5551234567",
		).
		WillReturnRows(confirmationRows().
			AddRow("req-1", "trip-1", string(domain.ConfirmationAwaitingResponse),
				"+15551234567", "5551234567", now.Add(time.Hour),
				nil, nil, nil, string(domain.ResolutionChannelSMS), 0, now).
			AddRow("req-2", "trip-2", string(domain.ConfirmationUnclear),
				"+15551234567", "5551234567", now.Add(2*time.Hour),
				"what", now, "+15551234567", string(domain.ResolutionChannelSMS), 1, now))

	reqs, err := repo.ListOpenByPhone(context.Background(), "+15551234567", "5551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(reqs) != 2 {
		t.Fatalf("expected 2 open requests, got %d", len(reqs))
	}
	if reqs[1].Status != domain.ConfirmationUnclear {
		t.Errorf("expected parked unclear request returned, got %s", reqs[1].Status)
	}
	if reqs[1].RepromptCount != 1 {
		t.Errorf("expected reprompt count 1, got %d", reqs[1].RepromptCount)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
