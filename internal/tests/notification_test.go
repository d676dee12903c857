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
// NOTIFICATION FAN-OUT AND DELIVERY LOGGING
// ──────────────────────────────────────────────

type dispatcherFixture struct {
	dispatcher      *service.Dispatcher
	jobRepo         *MockNotificationJobRepository
	driverRepo      *MockDriverRepository
	facilityRepo    *MockFacilityRepository
	suppressionRepo *MockSuppressionRepository
	gateway         *RecordingGateway
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		jobRepo:         NewMockNotificationJobRepository(),
		driverRepo:      NewMockDriverRepository(),
		facilityRepo:    NewMockFacilityRepository(),
		suppressionRepo: NewMockSuppressionRepository(),
		gateway:         NewRecordingGateway(),
	}
	suppression := service.NewSuppressionService(f.suppressionRepo, NewMockSuppressionCache())
	f.dispatcher = service.NewDispatcher(
		f.jobRepo, f.driverRepo, f.facilityRepo, suppression, f.gateway,
		16, time.Second,
	)
	return f
}

func cancelledTrip() *domain.Trip {
	return &domain.Trip{
		ID:                "trip-1",
		Status:            domain.TripStatusCancelled,
		DriverID:          "driver-1",
		FacilityID:        "facility-1",
		ScheduledPickupAt: time.Now().Add(4 * time.Hour),
		PickupAddress:     "100 Main St",
		DropoffAddress:    "200 Clinic Way",
		CancelReason:      "patient rescheduled",
		Version:           2,
	}
}

func TestDispatch_CancellationFansOutToDriverAndFacility(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()
	ctx := context.Background()

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: true})
	f.facilityRepo.AddFacility(&domain.Facility{
		ID:                "facility-1",
		NotificationEmail: "dispatch@clinic.example",
	})

	err := f.dispatcher.Dispatch(ctx, service.Event{
		Type:   service.EventTripCancelled,
		Trip:   cancelledTrip(),
		Reason: "patient rescheduled",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := f.jobRepo.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}

	var driverJob, facilityJob *domain.NotificationJob
	for _, job := range jobs {
		switch job.Category {
		case domain.NotificationDriverAlert:
			driverJob = job
		case domain.NotificationFacilityAlert:
			facilityJob = job
		}
	}

	if driverJob == nil || driverJob.Recipient != "+15550001111" || driverJob.Channel != domain.ChannelSMS {
		t.Errorf("unexpected driver job %+v", driverJob)
	}
	if facilityJob == nil || facilityJob.Recipient != "dispatch@clinic.example" || facilityJob.Channel != domain.ChannelEmail {
		t.Errorf("unexpected facility job %+v", facilityJob)
	}
	if facilityJob != nil && !strings.Contains(facilityJob.Body, "patient rescheduled") {
		t.Errorf("expected reason in facility body, got %q", facilityJob.Body)
	}
}

func TestDispatch_WorkerDeliversAndMarksSent(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()
	ctx := context.Background()

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: true})
	f.facilityRepo.AddFacility(&domain.Facility{ID: "facility-1", NotificationEmail: "dispatch@clinic.example"})

	f.dispatcher.Start(2)

	if err := f.dispatcher.Dispatch(ctx, service.Event{
		Type:   service.EventTripCancelled,
		Trip:   cancelledTrip(),
		Reason: "patient rescheduled",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Drain the pool before asserting.
	f.dispatcher.Stop()

	for _, job := range f.jobRepo.Jobs() {
		if job.Status != domain.NotificationJobSent {
			t.Errorf("job %s: expected sent, got %s", job.ID, job.Status)
		}
		if job.ProviderRef == "" {
			t.Errorf("job %s: expected provider reference recorded", job.ID)
		}
	}
	if len(f.gateway.Messages()) != 2 {
		t.Errorf("expected 2 gateway sends, got %d", len(f.gateway.Messages()))
	}
}

func TestDispatch_GatewayFailureMarksJobFailed(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()
	f.gateway.SendError = errors.New("carrier unavailable")

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: true})
	f.facilityRepo.AddFacility(&domain.Facility{ID: "facility-1", NotificationEmail: "dispatch@clinic.example"})

	f.dispatcher.Start(1)
	if err := f.dispatcher.Dispatch(context.Background(), service.Event{
		Type:   service.EventTripCancelled,
		Trip:   cancelledTrip(),
		Reason: "patient rescheduled",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.dispatcher.Stop()

	for _, job := range f.jobRepo.Jobs() {
		if job.Status != domain.NotificationJobFailed {
			t.Errorf("job %s: expected failed, got %s", job.ID, job.Status)
		}
		if !strings.Contains(job.ErrorDetail, "carrier unavailable") {
			t.Errorf("job %s: expected gateway error recorded, got %q", job.ID, job.ErrorDetail)
		}
	}
}

func TestDispatch_SuppressedRecipientRecordedAsFailed(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()
	ctx := context.Background()

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: true})
	f.facilityRepo.AddFacility(&domain.Facility{ID: "facility-1", NotificationEmail: "dispatch@clinic.example"})
	f.suppressionRepo.AddEntry(&domain.SuppressionEntry{
		Address:    "5550001111",
		Channel:    domain.ChannelSMS,
		Suppressed: true,
	})

	if err := f.dispatcher.Dispatch(ctx, service.Event{
		Type:   service.EventTripCancelled,
		Trip:   cancelledTrip(),
		Reason: "patient rescheduled",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var driverJob *domain.NotificationJob
	for _, job := range f.jobRepo.Jobs() {
		if job.Category == domain.NotificationDriverAlert {
			driverJob = job
		}
	}
	if driverJob == nil {
		t.Fatal("expected a driver job recorded even when suppressed")
	}
	if driverJob.Status != domain.NotificationJobFailed {
		t.Errorf("expected failed, got %s", driverJob.Status)
	}
	if driverJob.ErrorDetail != "recipient suppressed" {
		t.Errorf("expected suppression recorded, got %q", driverJob.ErrorDetail)
	}
	if len(f.gateway.Messages()) != 0 {
		t.Error("suppressed job must never reach the gateway")
	}
}

func TestDispatch_DriverWithoutSMSSkipped(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: false})
	f.facilityRepo.AddFacility(&domain.Facility{ID: "facility-1", NotificationEmail: "dispatch@clinic.example"})

	if err := f.dispatcher.Dispatch(context.Background(), service.Event{
		Type:   service.EventTripCancelled,
		Trip:   cancelledTrip(),
		Reason: "patient rescheduled",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, job := range f.jobRepo.Jobs() {
		if job.Category == domain.NotificationDriverAlert {
			t.Error("no driver job expected when sms notifications are disabled")
		}
	}
}

func TestDispatch_FacilityContactFallback(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: true})
	// No dedicated notification address; fall back to the general contact.
	f.facilityRepo.AddFacility(&domain.Facility{
		ID:           "facility-1",
		ContactEmail: "frontdesk@clinic.example",
	})

	if err := f.dispatcher.Dispatch(context.Background(), service.Event{
		Type:   service.EventTripCancelled,
		Trip:   cancelledTrip(),
		Reason: "patient rescheduled",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var facilityJob *domain.NotificationJob
	for _, job := range f.jobRepo.Jobs() {
		if job.Category == domain.NotificationFacilityAlert {
			facilityJob = job
		}
	}
	if facilityJob == nil {
		t.Fatal("expected facility job")
	}
	if facilityJob.Recipient != "frontdesk@clinic.example" {
		t.Errorf("expected fallback contact, got %s", facilityJob.Recipient)
	}
}

func TestDispatch_NoFacilityContactRecordedAsFailed(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: true})
	f.facilityRepo.AddFacility(&domain.Facility{ID: "facility-1"})

	if err := f.dispatcher.Dispatch(context.Background(), service.Event{
		Type:   service.EventTripCancelled,
		Trip:   cancelledTrip(),
		Reason: "patient rescheduled",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var facilityJob *domain.NotificationJob
	for _, job := range f.jobRepo.Jobs() {
		if job.Category == domain.NotificationFacilityAlert {
			facilityJob = job
		}
	}
	if facilityJob == nil {
		t.Fatal("expected failed facility job to be recorded")
	}
	if facilityJob.Status != domain.NotificationJobFailed {
		t.Errorf("expected failed, got %s", facilityJob.Status)
	}
	if facilityJob.ErrorDetail != "no facility contact configured" {
		t.Errorf("unexpected error detail %q", facilityJob.ErrorDetail)
	}
}

func TestDispatch_ConfirmedEventOnlyAlertsDriver(t *testing.T) {
	t.Parallel()

	f := newDispatcherFixture()

	f.driverRepo.AddDriver(&domain.Driver{ID: "driver-1", Phone: "+15550001111", NotifyBySMS: true})
	f.facilityRepo.AddFacility(&domain.Facility{ID: "facility-1", NotificationEmail: "dispatch@clinic.example"})

	trip := cancelledTrip()
	trip.Status = domain.TripStatusAssigned

	if err := f.dispatcher.Dispatch(context.Background(), service.Event{
		Type: service.EventConfirmationConfirmed,
		Trip: trip,
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	jobs := f.jobRepo.Jobs()
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Category != domain.NotificationDriverAlert {
		t.Errorf("expected driver alert, got %s", jobs[0].Category)
	}
}

func TestSuppression_ResubscribeReenablesDelivery(t *testing.T) {
	t.Parallel()

	suppressionRepo := NewMockSuppressionRepository()
	cache := NewMockSuppressionCache()
	svc := service.NewSuppressionService(suppressionRepo, cache)
	ctx := context.Background()

	if err := svc.Suppress(ctx, domain.ChannelSMS, "+15551234567"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	suppressed, err := svc.IsSuppressed(ctx, domain.ChannelSMS, "15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !suppressed {
		t.Error("expected address suppressed across phone formats")
	}

	if err := svc.Resubscribe(ctx, domain.ChannelSMS, "5551234567"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	suppressed, err = svc.IsSuppressed(ctx, domain.ChannelSMS, "+15551234567")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if suppressed {
		t.Error("expected address deliverable after resubscribe")
	}

	entry := suppressionRepo.GetEntry("5551234567", domain.ChannelSMS)
	if entry == nil {
		t.Fatal("expected registry entry retained after resubscribe")
	}
	if entry.Suppressed {
		t.Error("expected entry marked not suppressed")
	}
	if entry.ResubscribedAt.IsZero() {
		t.Error("expected resubscribe timestamp recorded")
	}
}

func TestSuppression_CacheFailureFallsThroughToRegistry(t *testing.T) {
	t.Parallel()

	suppressionRepo := NewMockSuppressionRepository()
	cache := NewMockSuppressionCache()
	cache.GetError = errors.New("redis down")
	svc := service.NewSuppressionService(suppressionRepo, cache)

	suppressionRepo.AddEntry(&domain.SuppressionEntry{
		Address:    "5551234567",
		Channel:    domain.ChannelSMS,
		Suppressed: true,
	})

	suppressed, err := svc.IsSuppressed(context.Background(), domain.ChannelSMS, "+15551234567")
	if err != nil {
		t.Fatalf("cache failure must not fail the check: %v", err)
	}
	if !suppressed {
		t.Error("expected registry answer despite cache failure")
	}
}
