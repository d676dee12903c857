package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"medtransit/internal/domain"
	"medtransit/internal/metrics"
	"medtransit/internal/repository"
)

// Event is a trip or confirmation state change the dispatcher fans out.
type Event struct {
	Type   EventType
	Trip   *domain.Trip
	Reason string
}

// Dispatcher turns state-change events into persisted notification jobs
// and delivers them through the outbound gateway. Job creation happens
// synchronously inside the triggering operation; delivery runs on a
// worker pool so gateway latency never blocks a state transition.
type Dispatcher struct {
	jobRepo      repository.NotificationJobRepository
	driverRepo   repository.DriverRepository
	facilityRepo repository.FacilityRepository
	suppression  *SuppressionService
	gateway      Gateway

	queue           chan *domain.NotificationJob
	wg              sync.WaitGroup
	deliveryTimeout time.Duration
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(
	jobRepo repository.NotificationJobRepository,
	driverRepo repository.DriverRepository,
	facilityRepo repository.FacilityRepository,
	suppression *SuppressionService,
	gateway Gateway,
	queueSize int,
	deliveryTimeout time.Duration,
) *Dispatcher {
	return &Dispatcher{
		jobRepo:         jobRepo,
		driverRepo:      driverRepo,
		facilityRepo:    facilityRepo,
		suppression:     suppression,
		gateway:         gateway,
		queue:           make(chan *domain.NotificationJob, queueSize),
		deliveryTimeout: deliveryTimeout,
	}
}

// Start launches the delivery worker pool.
func (d *Dispatcher) Start(workers int) {
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}
}

// Stop closes the queue and waits for in-flight deliveries to finish.
func (d *Dispatcher) Stop() {
	close(d.queue)
	d.wg.Wait()
}

// Dispatch renders and enqueues the notification jobs for an event.
// Persisting the jobs is part of the triggering operation; a gateway
// failure later never rolls the trigger back.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event) error {
	trip := event.Trip

	if trip.DriverID != "" {
		if err := d.dispatchDriverAlert(ctx, event); err != nil {
			return err
		}
	}

	switch event.Type {
	case EventTripCancelled, EventTripNoShow, EventConfirmationDeclined:
		if err := d.dispatchFacilityAlert(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

func (d *Dispatcher) dispatchDriverAlert(ctx context.Context, event Event) error {
	body, ok := renderTemplate(event.Type, domain.NotificationDriverAlert, event.Trip, event.Reason)
	if !ok {
		return nil
	}

	driver, err := d.driverRepo.GetByID(ctx, event.Trip.DriverID)
	if err != nil {
		return err
	}
	if !driver.NotifyBySMS {
		log.Printf("driver alert skipped: driver=%s has sms notifications disabled", driver.ID)
		return nil
	}

	return d.enqueue(ctx, &domain.NotificationJob{
		ID:        uuid.New().String(),
		TripID:    event.Trip.ID,
		Category:  domain.NotificationDriverAlert,
		Channel:   domain.ChannelSMS,
		Recipient: driver.Phone,
		Body:      body,
		Status:    domain.NotificationJobPending,
		CreatedAt: time.Now(),
	})
}

func (d *Dispatcher) dispatchFacilityAlert(ctx context.Context, event Event) error {
	body, ok := renderTemplate(event.Type, domain.NotificationFacilityAlert, event.Trip, event.Reason)
	if !ok {
		return nil
	}

	facility, err := d.facilityRepo.GetByID(ctx, event.Trip.FacilityID)
	if err != nil {
		return err
	}

	// Configured notification address first, general contact second.
	recipient := facility.NotificationEmail
	if recipient == "" {
		recipient = facility.ContactEmail
	}

	job := &domain.NotificationJob{
		ID:        uuid.New().String(),
		TripID:    event.Trip.ID,
		Category:  domain.NotificationFacilityAlert,
		Channel:   domain.ChannelEmail,
		Recipient: recipient,
		Body:      body,
		Status:    domain.NotificationJobPending,
		CreatedAt: time.Now(),
	}

	if recipient == "" {
		// Record the failure instead of silently dropping the alert.
		job.Status = domain.NotificationJobFailed
		job.ErrorDetail = "no facility contact configured"
		metrics.NotificationJobsTotal.WithLabelValues(string(job.Category), string(job.Status)).Inc()
		return d.jobRepo.Create(ctx, job)
	}

	return d.enqueue(ctx, job)
}

// enqueue persists a job and hands it to the worker pool. Suppressed
// recipients are recorded as failed jobs so the skip stays observable.
func (d *Dispatcher) enqueue(ctx context.Context, job *domain.NotificationJob) error {
	suppressed, err := d.suppression.IsSuppressed(ctx, job.Channel, job.Recipient)
	if err != nil {
		return err
	}

	if suppressed {
		job.Status = domain.NotificationJobFailed
		job.ErrorDetail = "recipient suppressed"
		metrics.NotificationsSuppressedTotal.Inc()
		metrics.NotificationJobsTotal.WithLabelValues(string(job.Category), string(job.Status)).Inc()
		return d.jobRepo.Create(ctx, job)
	}

	if err := d.jobRepo.Create(ctx, job); err != nil {
		return err
	}

	select {
	case d.queue <- job:
	default:
		// Queue is full. The job stays pending and visible for operators;
		// there is no silent retry loop.
		log.Printf("notification queue full: job=%s left pending", job.ID)
	}

	return nil
}

// worker delivers queued jobs until the queue closes. Each attempt is
// bounded by the delivery timeout and its outcome is written back
// independently of the triggering transaction.
func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for job := range d.queue {
		d.deliver(job)
	}
}

func (d *Dispatcher) deliver(job *domain.NotificationJob) {
	ctx, cancel := context.WithTimeout(context.Background(), d.deliveryTimeout)
	defer cancel()

	start := time.Now()
	providerRef, err := d.gateway.Send(ctx, job.Channel, job.Recipient, job.Body)
	metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	// The write-back gets its own context: the delivery ctx may already
	// have expired, and the outcome must be recorded regardless.
	writeCtx, writeCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer writeCancel()

	if err != nil {
		metrics.NotificationJobsTotal.WithLabelValues(string(job.Category), string(domain.NotificationJobFailed)).Inc()
		if markErr := d.jobRepo.MarkFailed(writeCtx, job.ID, err.Error()); markErr != nil {
			log.Printf("failed to record delivery failure: job=%s: %v", job.ID, markErr)
		}
		return
	}

	metrics.NotificationJobsTotal.WithLabelValues(string(job.Category), string(domain.NotificationJobSent)).Inc()
	if markErr := d.jobRepo.MarkSent(writeCtx, job.ID, providerRef); markErr != nil {
		log.Printf("failed to record delivery success: job=%s: %v", job.ID, markErr)
	}
}

// ListByTrip exposes the delivery log for a trip.
func (d *Dispatcher) ListByTrip(ctx context.Context, tripID string) ([]*domain.NotificationJob, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return d.jobRepo.ListByTrip(ctx, tripID)
}
