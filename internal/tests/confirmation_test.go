package tests

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"medtransit/internal/domain"
	"medtransit/internal/service"
)

// ──────────────────────────────────────────────
// RIDER CONFIRMATION PROTOCOL
// ──────────────────────────────────────────────

type confirmationFixture struct {
	svc              *service.ConfirmationService
	confirmationRepo *MockConfirmationRepository
	tripRepo         *MockTripRepository
	historyRepo      *MockHistoryRepository
	suppressionRepo  *MockSuppressionRepository
	jobRepo          *MockNotificationJobRepository
	driverRepo       *MockDriverRepository
	facilityRepo     *MockFacilityRepository
	gateway          *RecordingGateway
	dispatcher       *service.Dispatcher
}

func newConfirmationFixture() *confirmationFixture {
	f := &confirmationFixture{
		confirmationRepo: NewMockConfirmationRepository(),
		tripRepo:         NewMockTripRepository(),
		historyRepo:      NewMockHistoryRepository(),
		suppressionRepo:  NewMockSuppressionRepository(),
		jobRepo:          NewMockNotificationJobRepository(),
		driverRepo:       NewMockDriverRepository(),
		facilityRepo:     NewMockFacilityRepository(),
		gateway:          NewRecordingGateway(),
	}

	suppression := service.NewSuppressionService(f.suppressionRepo, NewMockSuppressionCache())
	f.dispatcher = service.NewDispatcher(
		f.jobRepo, f.driverRepo, f.facilityRepo, suppression, f.gateway,
		16, time.Second,
	)
	resolver := service.NewReplyResolver(f.confirmationRepo, f.tripRepo)
	f.svc = service.NewConfirmationService(
		f.confirmationRepo, f.tripRepo, f.historyRepo, resolver,
		suppression, f.dispatcher, f.gateway, NewMockLockStore(),
		2*time.Hour, time.Second,
	)
	return f
}

func TestRequestConfirmation_SendsAskAndSetsDeadline(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	pickup := time.Now().Add(24 * time.Hour)
	f.tripRepo.AddTrip(&domain.Trip{
		ID:                "trip-1",
		Status:            domain.TripStatusScheduled,
		ScheduledPickupAt: pickup,
		RiderPhone:        "+15551234567",
		PickupAddress:     "100 Main St",
		Version:           1,
	})

	req, err := f.svc.RequestConfirmation(ctx, "trip-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Status != domain.ConfirmationAwaitingResponse {
		t.Errorf("expected awaiting_response, got %s", req.Status)
	}
	wantDeadline := pickup.Add(-2 * time.Hour)
	if !req.ExpiresAt.Equal(wantDeadline) {
		t.Errorf("expected deadline %v, got %v", wantDeadline, req.ExpiresAt)
	}

	msgs := f.gateway.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 outbound ask, got %d", len(msgs))
	}
	if msgs[0].To != "+15551234567" || msgs[0].Channel != domain.ChannelSMS {
		t.Errorf("unexpected recipient %s on %s", msgs[0].To, msgs[0].Channel)
	}
	if !strings.Contains(msgs[0].Body, "Reply YES") {
		t.Errorf("ask body missing instructions: %q", msgs[0].Body)
	}
}

func TestRequestConfirmation_RejectedForIneligibleTrip(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	for _, status := range []domain.TripStatus{
		domain.TripStatusPending,
		domain.TripStatusEnRoute,
		domain.TripStatusCompleted,
	} {
		id := "trip-" + string(status)
		f.tripRepo.AddTrip(&domain.Trip{ID: id, Status: status, RiderPhone: "+15551234567", Version: 1})

		_, err := f.svc.RequestConfirmation(ctx, id)
		if !errors.Is(err, service.ErrConfirmationNotAllowed) {
			t.Errorf("status %s: expected ErrConfirmationNotAllowed, got %v", status, err)
		}
	}
}

func TestRequestConfirmation_SuppressedRiderRejected(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	f.suppressionRepo.AddEntry(&domain.SuppressionEntry{
		Address:    "5551234567",
		Channel:    domain.ChannelSMS,
		Suppressed: true,
	})
	f.tripRepo.AddTrip(&domain.Trip{
		ID:                "trip-1",
		Status:            domain.TripStatusScheduled,
		ScheduledPickupAt: time.Now().Add(24 * time.Hour),
		RiderPhone:        "+15551234567",
		Version:           1,
	})

	_, err := f.svc.RequestConfirmation(context.Background(), "trip-1")
	if !errors.Is(err, service.ErrRecipientSuppressed) {
		t.Fatalf("expected ErrRecipientSuppressed, got %v", err)
	}
}

func TestHandleInboundReply_YesConfirmsAndAlertsDriver(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: true})
	f.tripRepo.AddTrip(&domain.Trip{
		ID:                "trip-1",
		Status:            domain.TripStatusAssigned,
		DriverID:          "driver-1",
		ScheduledPickupAt: time.Now().Add(24 * time.Hour),
		RiderPhone:        "+15551234567",
		Version:           1,
	})
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:              "req-1",
		TripID:          "trip-1",
		Status:          domain.ConfirmationAwaitingResponse,
		RecipientPhone:  "+15551234567",
		NormalizedPhone: "5551234567",
		ExpiresAt:       time.Now().Add(time.Hour),
		CreatedAt:       time.Now(),
	})

	result, err := f.svc.HandleInboundReply(ctx, service.InboundReply{
		From: "+15551234567",
		Text: "YES",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Matched || result.TripID != "trip-1" {
		t.Fatalf("expected match on trip-1, got %+v", result)
	}
	if result.Intent != domain.ReplyIntentAffirm {
		t.Errorf("expected affirm intent, got %s", result.Intent)
	}
	if result.ResolvedStatus != domain.ConfirmationConfirmed {
		t.Errorf("expected confirmed, got %s", result.ResolvedStatus)
	}

	stored := f.confirmationRepo.GetRequest("req-1")
	if stored.Status != domain.ConfirmationConfirmed {
		t.Errorf("expected stored request confirmed, got %s", stored.Status)
	}
	if stored.ReplyText != "YES" {
		t.Errorf("expected reply text recorded, got %q", stored.ReplyText)
	}

	// Driver alert job persisted.
	var driverJobs int
	for _, job := range f.jobRepo.Jobs() {
		if job.Category == domain.NotificationDriverAlert && job.TripID == "trip-1" {
			driverJobs++
		}
	}
	if driverJobs != 1 {
		t.Errorf("expected 1 driver alert job, got %d", driverJobs)
	}

	// Rider got an ack.
	var ack bool
	for _, msg := range f.gateway.Messages() {
		if msg.To == "+15551234567" && strings.Contains(msg.Body, "confirmed") {
			ack = true
		}
	}
	if !ack {
		t.Error("expected confirmation ack sent to rider")
	}
}

func TestHandleInboundReply_PhoneVariantsMatch(t *testing.T) {
	t.Parallel()

	variants := []string{"+15551234567", "15551234567", "5551234567"}

	for _, from := range variants {
		f := newConfirmationFixture()
		f.tripRepo.AddTrip(&domain.Trip{ID: "trip-1", Status: domain.TripStatusScheduled, Version: 1})
		f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
			ID:              "req-1",
			TripID:          "trip-1",
			Status:          domain.ConfirmationAwaitingResponse,
			RecipientPhone:  "+15551234567",
			NormalizedPhone: "5551234567",
			ExpiresAt:       time.Now().Add(time.Hour),
			CreatedAt:       time.Now(),
		})

		result, err := f.svc.HandleInboundReply(context.Background(), service.InboundReply{
			From: from,
			Text: "yes",
		})
		if err != nil {
			t.Fatalf("variant %s: unexpected error: %v", from, err)
		}
		if !result.Matched {
			t.Errorf("variant %s: expected match", from)
		}
	}
}

func TestHandleInboundReply_StopSuppressesWithoutDeclining(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	f.tripRepo.AddTrip(&domain.Trip{ID: "trip-1", Status: domain.TripStatusScheduled, Version: 1})
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:              "req-1",
		TripID:          "trip-1",
		Status:          domain.ConfirmationAwaitingResponse,
		RecipientPhone:  "+15551234567",
		NormalizedPhone: "5551234567",
		ExpiresAt:       time.Now().Add(time.Hour),
		CreatedAt:       time.Now(),
	})

	result, err := f.svc.HandleInboundReply(ctx, service.InboundReply{
		From: "+15551234567",
		Text: "STOP",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.OptedOut {
		t.Error("expected opt-out result")
	}
	if result.Matched {
		t.Error("opt-out must not resolve any request")
	}

	// The request is untouched: STOP is not a decline.
	stored := f.confirmationRepo.GetRequest("req-1")
	if stored.Status != domain.ConfirmationAwaitingResponse {
		t.Errorf("expected request left awaiting_response, got %s", stored.Status)
	}

	entry := f.suppressionRepo.GetEntry("5551234567", domain.ChannelSMS)
	if entry == nil || !entry.Suppressed {
		t.Fatal("expected suppression entry created")
	}
}

func TestHandleInboundReply_UnclearRepromptsOnceThenParks(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	f.tripRepo.AddTrip(&domain.Trip{ID: "trip-1", Status: domain.TripStatusScheduled, Version: 1})
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:              "req-1",
		TripID:          "trip-1",
		Status:          domain.ConfirmationAwaitingResponse,
		RecipientPhone:  "+15551234567",
		NormalizedPhone: "5551234567",
		ExpiresAt:       time.Now().Add(time.Hour),
		CreatedAt:       time.Now(),
	})

	result, err := f.svc.HandleInboundReply(ctx, service.InboundReply{
		From: "+15551234567",
		Text: "maybe later",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ResolvedStatus != domain.ConfirmationAwaitingResponse {
		t.Errorf("first unclear reply should keep request open, got %s", result.ResolvedStatus)
	}
	if result.OutboundMessage == "" {
		t.Error("expected a reprompt message")
	}

	stored := f.confirmationRepo.GetRequest("req-1")
	if stored.RepromptCount != 1 {
		t.Errorf("expected reprompt count 1, got %d", stored.RepromptCount)
	}

	// Second unclear reply parks the request.
	result, err = f.svc.HandleInboundReply(ctx, service.InboundReply{
		From: "+15551234567",
		Text: "what",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ResolvedStatus != domain.ConfirmationUnclear {
		t.Errorf("second unclear reply should park as unclear, got %s", result.ResolvedStatus)
	}
	if result.OutboundMessage != "" {
		t.Errorf("no second reprompt expected, got %q", result.OutboundMessage)
	}
}

func TestHandleInboundReply_ParkedUnclearStillResolvable(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	f.tripRepo.AddTrip(&domain.Trip{ID: "trip-1", Status: domain.TripStatusScheduled, Version: 1})
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:              "req-1",
		TripID:          "trip-1",
		Status:          domain.ConfirmationUnclear,
		RecipientPhone:  "+15551234567",
		NormalizedPhone: "5551234567",
		RepromptCount:   1,
		ExpiresAt:       time.Now().Add(time.Hour),
		CreatedAt:       time.Now(),
	})

	// A clear reply with no trip hint must still reach the parked request.
	result, err := f.svc.HandleInboundReply(ctx, service.InboundReply{
		From: "+15551234567",
		Text: "YES",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ResolvedStatus != domain.ConfirmationConfirmed {
		t.Errorf("expected confirmed, got %s", result.ResolvedStatus)
	}

	stored := f.confirmationRepo.GetRequest("req-1")
	if stored.Status != domain.ConfirmationConfirmed {
		t.Errorf("stored request not confirmed, got %s", stored.Status)
	}
}

func TestHandleInboundReply_NoMatchReturnsTypedError(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()

	_, err := f.svc.HandleInboundReply(context.Background(), service.InboundReply{
		From: "+15559990000",
		Text: "yes",
	})
	if !errors.Is(err, service.ErrNoPendingConfirmation) {
		t.Fatalf("expected ErrNoPendingConfirmation, got %v", err)
	}
}

func TestHandleInboundReply_LateReplyBecomesAuditNote(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	f.tripRepo.AddTrip(&domain.Trip{ID: "trip-1", Status: domain.TripStatusScheduled, Version: 1})
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:              "req-1",
		TripID:          "trip-1",
		Status:          domain.ConfirmationExpired,
		RecipientPhone:  "+15551234567",
		NormalizedPhone: "5551234567",
		ExpiresAt:       time.Now().Add(-time.Hour),
		CreatedAt:       time.Now().Add(-2 * time.Hour),
	})

	result, err := f.svc.HandleInboundReply(ctx, service.InboundReply{
		From: "+15551234567",
		Text: "yes",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.ResolvedStatus != domain.ConfirmationExpired {
		t.Errorf("late reply must not revive the request, got %s", result.ResolvedStatus)
	}
	stored := f.confirmationRepo.GetRequest("req-1")
	if stored.Status != domain.ConfirmationExpired {
		t.Errorf("stored request must stay expired, got %s", stored.Status)
	}

	entries := f.historyRepo.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 audit note, got %d", len(entries))
	}
	if entries[0].ChangeType != domain.ChangeTypeNote {
		t.Errorf("expected note change type, got %s", entries[0].ChangeType)
	}
	if !strings.Contains(entries[0].Reason, "late confirmation reply") {
		t.Errorf("unexpected note reason %q", entries[0].Reason)
	}
}

func TestHandleInboundReply_TripHintTakesPrecedence(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	f.tripRepo.AddTrip(&domain.Trip{ID: "trip-2", Status: domain.TripStatusScheduled, Version: 1})
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:              "req-2",
		TripID:          "trip-2",
		Status:          domain.ConfirmationAwaitingResponse,
		RecipientPhone:  "+15551234567",
		NormalizedPhone: "5551234567",
		ExpiresAt:       time.Now().Add(time.Hour),
		CreatedAt:       time.Now(),
	})

	result, err := f.svc.HandleInboundReply(ctx, service.InboundReply{
		From:   "+15551234567",
		Text:   "no",
		TripID: "trip-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TripID != "trip-2" {
		t.Errorf("expected resolution against trip-2, got %s", result.TripID)
	}
	if result.ResolvedStatus != domain.ConfirmationDeclined {
		t.Errorf("expected declined, got %s", result.ResolvedStatus)
	}
}

func TestExpireStale_OnlyPastDeadlineExpires(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	f.tripRepo.AddTrip(&domain.Trip{ID: "trip-1", Status: domain.TripStatusScheduled, Version: 1})
	f.tripRepo.AddTrip(&domain.Trip{ID: "trip-2", Status: domain.TripStatusScheduled, Version: 1})

	// Past its deadline.
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:        "req-stale",
		TripID:    "trip-1",
		Status:    domain.ConfirmationAwaitingResponse,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-3 * time.Hour),
	})
	// Deadline still ahead, e.g. a sweep at 12:01 against a 12:00 deadline
	// offset from a 14:00 pickup.
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:        "req-fresh",
		TripID:    "trip-2",
		Status:    domain.ConfirmationAwaitingResponse,
		ExpiresAt: time.Now().Add(2 * time.Hour),
		CreatedAt: time.Now(),
	})

	count, err := f.svc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 expiry, got %d", count)
	}

	if got := f.confirmationRepo.GetRequest("req-stale").Status; got != domain.ConfirmationExpired {
		t.Errorf("expected req-stale expired, got %s", got)
	}
	if got := f.confirmationRepo.GetRequest("req-fresh").Status; got != domain.ConfirmationAwaitingResponse {
		t.Errorf("expected req-fresh untouched, got %s", got)
	}

	// Expiry never touches the trip itself.
	if got := f.tripRepo.GetTrip("trip-1").Status; got != domain.TripStatusScheduled {
		t.Errorf("expected trip-1 status unchanged, got %s", got)
	}
}

func TestExpireStale_ResolvedRequestSkipped(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()

	f.tripRepo.AddTrip(&domain.Trip{ID: "trip-1", Status: domain.TripStatusScheduled, Version: 1})
	f.confirmationRepo.AddRequest(&domain.ConfirmationRequest{
		ID:        "req-1",
		TripID:    "trip-1",
		Status:    domain.ConfirmationConfirmed,
		ExpiresAt: time.Now().Add(-time.Minute),
		CreatedAt: time.Now().Add(-3 * time.Hour),
	})

	count, err := f.svc.ExpireStale(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no expiries, got %d", count)
	}
	if got := f.confirmationRepo.GetRequest("req-1").Status; got != domain.ConfirmationConfirmed {
		t.Errorf("terminal request must never change, got %s", got)
	}
}

func TestRequestConfirmation_SecondActiveRequestRejected(t *testing.T) {
	t.Parallel()

	f := newConfirmationFixture()
	ctx := context.Background()

	f.tripRepo.AddTrip(&domain.Trip{
		ID:                "trip-1",
		Status:            domain.TripStatusScheduled,
		ScheduledPickupAt: time.Now().Add(24 * time.Hour),
		RiderPhone:        "+15551234567",
		Version:           1,
	})

	if _, err := f.svc.RequestConfirmation(ctx, "trip-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err := f.svc.RequestConfirmation(ctx, "trip-1")
	if err == nil {
		t.Fatal("expected second request to be rejected")
	}
}
