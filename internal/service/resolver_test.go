package service

import (
	"context"
	"testing"
	"time"

	"medtransit/internal/domain"
	"medtransit/internal/repository"
)

func TestClassifyReply(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want domain.ReplyIntent
	}{
		{"YES", domain.ReplyIntentAffirm},
		{"yes", domain.ReplyIntentAffirm},
		{"  Yes.  ", domain.ReplyIntentAffirm},
		{"y", domain.ReplyIntentAffirm},
		{"yeah", domain.ReplyIntentAffirm},
		{"confirm", domain.ReplyIntentAffirm},
		{"ok", domain.ReplyIntentAffirm},
		{"1", domain.ReplyIntentAffirm},
		{"NO", domain.ReplyIntentDecline},
		{"no!", domain.ReplyIntentDecline},
		{"n", domain.ReplyIntentDecline},
		{"nope", domain.ReplyIntentDecline},
		{"cancel", domain.ReplyIntentDecline},
		{"2", domain.ReplyIntentDecline},
		{"STOP", domain.ReplyIntentOptOut},
		{"stop", domain.ReplyIntentOptOut},
		{"unsubscribe", domain.ReplyIntentOptOut},
		{"QUIT", domain.ReplyIntentOptOut},
		{"end", domain.ReplyIntentOptOut},
		{"maybe", domain.ReplyIntentUnclear},
		{"yes please but only if the driver is early", domain.ReplyIntentUnclear},
		{"", domain.ReplyIntentUnclear},
		{"🙂", domain.ReplyIntentUnclear},
	}

	for _, tc := range cases {
		if got := ClassifyReply(tc.text); got != tc.want {
			t.Errorf("ClassifyReply(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestNormalizePhone(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"+15551234567", "5551234567"},
		{"15551234567", "5551234567"},
		{"5551234567", "5551234567"},
		{"(555) 123-4567", "5551234567"},
		{"+44 20 7946 0958", "442079460958"},
		{"", ""},
	}

	for _, tc := range cases {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

// stubConfirmationRepo serves a fixed list of open requests; the embedded
// interface panics on anything else Resolve should not touch.
type stubConfirmationRepo struct {
	repository.ConfirmationRepository
	open []*domain.ConfirmationRequest
}

func (s *stubConfirmationRepo) ListOpenByPhone(ctx context.Context, raw, normalized string) ([]*domain.ConfirmationRequest, error) {
	return s.open, nil
}

type stubTripRepo struct {
	repository.TripRepository
	trips map[string]*domain.Trip
}

func (s *stubTripRepo) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	trip, ok := s.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return trip, nil
}

func newOrderingResolver(now time.Time, reqs []*domain.ConfirmationRequest, trips ...*domain.Trip) *ReplyResolver {
	tripsByID := make(map[string]*domain.Trip, len(trips))
	for _, trip := range trips {
		tripsByID[trip.ID] = trip
	}
	r := NewReplyResolver(
		&stubConfirmationRepo{open: reqs},
		&stubTripRepo{trips: tripsByID},
	)
	r.now = func() time.Time { return now }
	return r
}

func openRequest(id, tripID string) *domain.ConfirmationRequest {
	return &domain.ConfirmationRequest{
		ID:     id,
		TripID: tripID,
		Status: domain.ConfirmationAwaitingResponse,
	}
}

func TestResolve_SameDayTripPreferred(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	r := newOrderingResolver(now,
		[]*domain.ConfirmationRequest{
			openRequest("req-tomorrow", "trip-tomorrow"),
			openRequest("req-today", "trip-today"),
		},
		&domain.Trip{ID: "trip-tomorrow", ScheduledPickupAt: now.Add(22 * time.Hour)},
		&domain.Trip{ID: "trip-today", ScheduledPickupAt: now.Add(6 * time.Hour)},
	)

	got, err := r.Resolve(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "req-today" {
		t.Errorf("expected same-day request req-today, got %s", got.ID)
	}
}

func TestResolve_SoonestSameDayPickupWins(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 7, 0, 0, 0, time.UTC)
	r := newOrderingResolver(now,
		[]*domain.ConfirmationRequest{
			openRequest("req-afternoon", "trip-afternoon"),
			openRequest("req-morning", "trip-morning"),
		},
		&domain.Trip{ID: "trip-afternoon", ScheduledPickupAt: now.Add(8 * time.Hour)},
		&domain.Trip{ID: "trip-morning", ScheduledPickupAt: now.Add(2 * time.Hour)},
	)

	got, err := r.Resolve(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "req-morning" {
		t.Errorf("expected soonest same-day request req-morning, got %s", got.ID)
	}
}

func TestResolve_NoSameDayFallsBackToSoonestFuture(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	r := newOrderingResolver(now,
		[]*domain.ConfirmationRequest{
			openRequest("req-friday", "trip-friday"),
			openRequest("req-wednesday", "trip-wednesday"),
		},
		&domain.Trip{ID: "trip-friday", ScheduledPickupAt: now.Add(72 * time.Hour)},
		&domain.Trip{ID: "trip-wednesday", ScheduledPickupAt: now.Add(26 * time.Hour)},
	)

	got, err := r.Resolve(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "req-wednesday" {
		t.Errorf("expected soonest future request req-wednesday, got %s", got.ID)
	}
}

func TestResolve_WillCallSortsAfterFixedTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, time.March, 10, 9, 0, 0, 0, time.UTC)
	r := newOrderingResolver(now,
		[]*domain.ConfirmationRequest{
			openRequest("req-willcall", "trip-willcall"),
			openRequest("req-fixed", "trip-fixed"),
		},
		&domain.Trip{ID: "trip-willcall", WillCall: true},
		&domain.Trip{ID: "trip-fixed", ScheduledPickupAt: now.Add(26 * time.Hour)},
	)

	got, err := r.Resolve(context.Background(), "+15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "req-fixed" {
		t.Errorf("expected fixed-time request req-fixed, got %s", got.ID)
	}
}

func TestSameLocalDay(t *testing.T) {
	t.Parallel()

	est := time.FixedZone("EST", -5*3600)
	jst := time.FixedZone("JST", 9*3600)

	cases := []struct {
		name   string
		pickup time.Time
		now    time.Time
		want   bool
	}{
		{
			name:   "late evening and past midnight are different days",
			pickup: time.Date(2026, time.March, 11, 0, 30, 0, 0, est),
			now:    time.Date(2026, time.March, 10, 23, 30, 0, 0, est),
			want:   false,
		},
		{
			name:   "morning and evening of the same local day match",
			pickup: time.Date(2026, time.March, 11, 20, 0, 0, 0, jst),
			now:    time.Date(2026, time.March, 11, 8, 0, 0, 0, jst),
			want:   true,
		},
		{
			name:   "pickup stored in UTC converts into the local day",
			pickup: time.Date(2026, time.March, 11, 1, 0, 0, 0, time.UTC),
			now:    time.Date(2026, time.March, 10, 18, 0, 0, 0, est),
			want:   true,
		},
		{
			name:   "zero pickup is never same-day",
			pickup: time.Time{},
			now:    time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC),
			want:   false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sameLocalDay(tc.pickup, tc.now); got != tc.want {
				t.Errorf("sameLocalDay(%v, %v) = %v, want %v", tc.pickup, tc.now, got, tc.want)
			}
		})
	}
}
