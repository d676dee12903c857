package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"medtransit/internal/domain"
	"medtransit/internal/metrics"
	internalRedis "medtransit/internal/redis"
	"medtransit/internal/repository"
)

// ConfirmationService owns the rider-confirmation sub-state-machine:
// it issues requests, resolves inbound replies against them, and expires
// requests past their deadline. Reply handling and expiry take the same
// per-trip lock as status transitions, so a sweep can never race an
// in-flight reply.
type ConfirmationService struct {
	confirmationRepo repository.ConfirmationRepository
	tripRepo         repository.TripRepository
	historyRepo      repository.HistoryRepository
	resolver         *ReplyResolver
	suppression      *SuppressionService
	dispatcher       *Dispatcher
	gateway          Gateway
	lockStore        internalRedis.LockStoreInterface

	deadlineOffset time.Duration
	lockTTL        time.Duration
	now            func() time.Time
}

// NewConfirmationService creates a new ConfirmationService.
func NewConfirmationService(
	confirmationRepo repository.ConfirmationRepository,
	tripRepo repository.TripRepository,
	historyRepo repository.HistoryRepository,
	resolver *ReplyResolver,
	suppression *SuppressionService,
	dispatcher *Dispatcher,
	gateway Gateway,
	lockStore internalRedis.LockStoreInterface,
	deadlineOffset time.Duration,
	lockTTL time.Duration,
) *ConfirmationService {
	return &ConfirmationService{
		confirmationRepo: confirmationRepo,
		tripRepo:         tripRepo,
		historyRepo:      historyRepo,
		resolver:         resolver,
		suppression:      suppression,
		dispatcher:       dispatcher,
		gateway:          gateway,
		lockStore:        lockStore,
		deadlineOffset:   deadlineOffset,
		lockTTL:          lockTTL,
		now:              time.Now,
	}
}

func (s *ConfirmationService) withTripLock(ctx context.Context, tripID string, fn func() error) error {
	if s.lockStore != nil {
		locked, err := s.lockStore.AcquireTripLock(ctx, tripID, s.lockTTL)
		if err != nil {
			return err
		}
		if !locked {
			return ErrTripBusy
		}
		defer s.lockStore.ReleaseTripLock(ctx, tripID)
	}
	return fn()
}

// RequestConfirmation issues an SMS confirmation ask for a trip. A trip
// is eligible only while scheduled or assigned with a reachable rider
// phone, and only one non-terminal request may exist at a time.
func (s *ConfirmationService) RequestConfirmation(ctx context.Context, tripID string) (*domain.ConfirmationRequest, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}

	var req *domain.ConfirmationRequest
	err := s.withTripLock(ctx, tripID, func() error {
		trip, err := s.tripRepo.GetByID(ctx, tripID)
		if err != nil {
			return err
		}

		if trip.Status != domain.TripStatusScheduled && trip.Status != domain.TripStatusAssigned {
			return ErrConfirmationNotAllowed
		}
		if trip.RiderPhone == "" {
			return ErrConfirmationNotAllowed
		}

		suppressed, err := s.suppression.IsSuppressed(ctx, domain.ChannelSMS, trip.RiderPhone)
		if err != nil {
			return err
		}
		if suppressed {
			return ErrRecipientSuppressed
		}

		now := s.now()
		deadline := now.Add(s.deadlineOffset)
		if !trip.ScheduledPickupAt.IsZero() {
			deadline = trip.ScheduledPickupAt.Add(-s.deadlineOffset)
		}

		req = &domain.ConfirmationRequest{
			ID:              uuid.New().String(),
			TripID:          trip.ID,
			Status:          domain.ConfirmationAwaitingResponse,
			RecipientPhone:  trip.RiderPhone,
			NormalizedPhone: NormalizePhone(trip.RiderPhone),
			ExpiresAt:       deadline,
			Channel:         domain.ResolutionChannelSMS,
			CreatedAt:       now,
		}

		if err := s.confirmationRepo.Create(ctx, req); err != nil {
			return err
		}

		if _, err := s.gateway.Send(ctx, domain.ChannelSMS, trip.RiderPhone, confirmationAskBody(trip)); err != nil {
			// The request stands; the ask can be re-sent manually.
			log.Printf("confirmation ask delivery failed: trip=%s: %v", trip.ID, err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return req, nil
}

// InboundReply is one message received from the SMS channel.
type InboundReply struct {
	From   string
	Text   string
	TripID string // optional hint from the carrier webhook
}

// IngestResult is the structured outcome of processing an inbound reply.
type IngestResult struct {
	Matched         bool
	OptedOut        bool
	TripID          string
	RequestID       string
	Intent          domain.ReplyIntent
	ResolvedStatus  domain.ConfirmationStatus
	OutboundMessage string
}

// HandleInboundReply ingests a rider reply. Opt-out intent only updates
// the suppression registry and never touches any confirmation request;
// decline affects exactly the one matched request. A reply that matches
// nothing returns ErrNoPendingConfirmation so a dispatcher can act on it.
func (s *ConfirmationService) HandleInboundReply(ctx context.Context, reply InboundReply) (*IngestResult, error) {
	intent := ClassifyReply(reply.Text)
	metrics.InboundRepliesTotal.WithLabelValues(string(intent)).Inc()

	if intent == domain.ReplyIntentOptOut {
		if err := s.suppression.Suppress(ctx, domain.ChannelSMS, reply.From); err != nil {
			return nil, err
		}
		return &IngestResult{OptedOut: true, Intent: intent}, nil
	}

	req, err := s.matchRequest(ctx, reply)
	if err != nil {
		if errors.Is(err, ErrNoPendingConfirmation) {
			if late := s.recordLateReply(ctx, reply, intent); late != nil {
				return late, nil
			}
			metrics.UnmatchedRepliesTotal.Inc()
		}
		return nil, err
	}

	var result *IngestResult
	err = s.withTripLock(ctx, req.TripID, func() error {
		var err error
		result, err = s.resolveLocked(ctx, req.ID, reply, intent)
		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// matchRequest finds the open request a reply belongs to, preferring an
// explicit trip hint over address matching.
func (s *ConfirmationService) matchRequest(ctx context.Context, reply InboundReply) (*domain.ConfirmationRequest, error) {
	if reply.TripID != "" {
		req, err := s.confirmationRepo.GetActiveByTrip(ctx, reply.TripID)
		if err != nil {
			return nil, err
		}
		if req == nil {
			return nil, ErrNoPendingConfirmation
		}
		return req, nil
	}

	return s.resolver.Resolve(ctx, reply.From)
}

// recordLateReply logs a reply that arrived after its request reached a
// terminal status. The request is not revived; the reply becomes an
// audit note on the trip. Returns nil when the sender has no request at
// all.
func (s *ConfirmationService) recordLateReply(ctx context.Context, reply InboundReply, intent domain.ReplyIntent) *IngestResult {
	latest, err := s.resolver.LatestForSender(ctx, reply.From)
	if err != nil || latest == nil || !latest.Status.IsTerminal() {
		return nil
	}

	trip, err := s.tripRepo.GetByID(ctx, latest.TripID)
	if err != nil {
		return nil
	}

	note := &domain.StatusHistoryEntry{
		ID:         uuid.New().String(),
		TripID:     trip.ID,
		FromStatus: trip.Status,
		ToStatus:   trip.Status,
		ChangeType: domain.ChangeTypeNote,
		Actor:      reply.From,
		Reason:     "late confirmation reply (" + string(latest.Status) + "): " + reply.Text,
		CreatedAt:  s.now(),
	}
	if err := s.historyRepo.Append(ctx, note); err != nil {
		log.Printf("failed to record late reply: trip=%s: %v", trip.ID, err)
	}

	return &IngestResult{
		Matched:        true,
		TripID:         latest.TripID,
		RequestID:      latest.ID,
		Intent:         intent,
		ResolvedStatus: latest.Status,
	}
}

// resolveLocked applies a matched reply under the trip lock. The request
// is re-read so a reply racing an expiry sweep sees the final state.
func (s *ConfirmationService) resolveLocked(ctx context.Context, requestID string, reply InboundReply, intent domain.ReplyIntent) (*IngestResult, error) {
	req, err := s.confirmationRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		Matched:   true,
		TripID:    req.TripID,
		RequestID: req.ID,
		Intent:    intent,
	}

	// Terminal requests never change again; the reply is kept as an
	// audit note only.
	if req.Status.IsTerminal() {
		s.noteLateReply(ctx, req, reply)
		result.ResolvedStatus = req.Status
		return result, nil
	}

	now := s.now()
	req.ReplyText = reply.Text
	req.ReplyAt = now
	req.ReplyFrom = reply.From
	req.Channel = domain.ResolutionChannelSMS

	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return nil, err
	}

	switch intent {
	case domain.ReplyIntentAffirm:
		req.Status = domain.ConfirmationConfirmed
		if err := s.confirmationRepo.Update(ctx, req); err != nil {
			return nil, err
		}
		s.dispatchEvent(ctx, EventConfirmationConfirmed, trip)
		result.OutboundMessage = confirmationAckBody(req.Status, trip.ScheduledPickupAt)

	case domain.ReplyIntentDecline:
		req.Status = domain.ConfirmationDeclined
		if err := s.confirmationRepo.Update(ctx, req); err != nil {
			return nil, err
		}
		s.dispatchEvent(ctx, EventConfirmationDeclined, trip)
		result.OutboundMessage = confirmationAckBody(req.Status, trip.ScheduledPickupAt)

	default: // unclear
		if req.RepromptCount == 0 {
			req.RepromptCount = 1
			req.Status = domain.ConfirmationAwaitingResponse
			result.OutboundMessage = confirmationRepromptBody()
		} else {
			// Already re-prompted once; leave the request open for a
			// dispatcher or expiry.
			req.Status = domain.ConfirmationUnclear
		}
		if err := s.confirmationRepo.Update(ctx, req); err != nil {
			return nil, err
		}
	}

	result.ResolvedStatus = req.Status

	if result.OutboundMessage != "" {
		if _, err := s.gateway.Send(ctx, domain.ChannelSMS, req.RecipientPhone, result.OutboundMessage); err != nil {
			log.Printf("confirmation ack delivery failed: request=%s: %v", req.ID, err)
		}
	}

	return result, nil
}

func (s *ConfirmationService) noteLateReply(ctx context.Context, req *domain.ConfirmationRequest, reply InboundReply) {
	trip, err := s.tripRepo.GetByID(ctx, req.TripID)
	if err != nil {
		return
	}

	note := &domain.StatusHistoryEntry{
		ID:         uuid.New().String(),
		TripID:     req.TripID,
		FromStatus: trip.Status,
		ToStatus:   trip.Status,
		ChangeType: domain.ChangeTypeNote,
		Actor:      reply.From,
		Reason:     "late confirmation reply (" + string(req.Status) + "): " + reply.Text,
		CreatedAt:  s.now(),
	}
	if err := s.historyRepo.Append(ctx, note); err != nil {
		log.Printf("failed to record late reply: trip=%s: %v", req.TripID, err)
	}
}

func (s *ConfirmationService) dispatchEvent(ctx context.Context, eventType EventType, trip *domain.Trip) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Dispatch(ctx, Event{Type: eventType, Trip: trip}); err != nil {
		log.Printf("notification dispatch failed: trip=%s: %v", trip.ID, err)
	}
}

// ExpireStale transitions open requests whose deadline has passed into
// expired. The underlying trip status is never touched: expiry only
// signals that no rider response was obtained.
func (s *ConfirmationService) ExpireStale(ctx context.Context) (int, error) {
	stale, err := s.confirmationRepo.ListExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, req := range stale {
		err := s.withTripLock(ctx, req.TripID, func() error {
			// Re-read under the lock: a reply may have resolved the
			// request between the list and the lock.
			current, err := s.confirmationRepo.GetByID(ctx, req.ID)
			if err != nil {
				return err
			}
			if current.Status.IsTerminal() {
				return nil
			}

			current.Status = domain.ConfirmationExpired
			if err := s.confirmationRepo.Update(ctx, current); err != nil {
				return err
			}

			expired++
			metrics.ConfirmationsExpiredTotal.Inc()
			log.Printf("confirmation expired: trip=%s request=%s", current.TripID, current.ID)
			return nil
		})
		if err != nil {
			log.Printf("expiry failed: request=%s: %v", req.ID, err)
		}
	}

	return expired, nil
}

// GetActiveByTrip retrieves a trip's open confirmation request, nil if none.
func (s *ConfirmationService) GetActiveByTrip(ctx context.Context, tripID string) (*domain.ConfirmationRequest, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.confirmationRepo.GetActiveByTrip(ctx, tripID)
}
