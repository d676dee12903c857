package service

import (
	"context"
	"log"
	"math"
	"time"

	"github.com/google/uuid"

	"medtransit/internal/domain"
	"medtransit/internal/metrics"
	"medtransit/internal/repository"
)

// PayoutService derives driver compensation for terminally statused trips
// from tiered distance-based rate configuration.
type PayoutService struct {
	rateRepo   repository.RateTierRepository
	payoutRepo repository.PayoutRepository
	driverRepo repository.DriverRepository
}

// NewPayoutService creates a new PayoutService.
func NewPayoutService(
	rateRepo repository.RateTierRepository,
	payoutRepo repository.PayoutRepository,
	driverRepo repository.DriverRepository,
) *PayoutService {
	return &PayoutService{
		rateRepo:   rateRepo,
		payoutRepo: payoutRepo,
		driverRepo: driverRepo,
	}
}

// CalculateForTrip computes and records the payout for a trip entering a
// terminal status. Rate misconfiguration fails closed: the payout record
// is persisted as unconfigured with a zero amount so nothing is guessed
// and an operator can reconcile it.
func (s *PayoutService) CalculateForTrip(ctx context.Context, trip *domain.Trip) (*domain.DriverPayout, error) {
	if trip.DriverID == "" {
		return nil, ErrInvalidDriverID
	}

	payout := &domain.DriverPayout{
		ID:        uuid.New().String(),
		TripID:    trip.ID,
		DriverID:  trip.DriverID,
		Status:    domain.PayoutCalculated,
		CreatedAt: time.Now(),
	}

	switch trip.Status {
	case domain.TripStatusCancelled, domain.TripStatusNoShow:
		// A missing cancellation rate yields zero payout, not an error.
		driver, err := s.driverRepo.GetByID(ctx, trip.DriverID)
		if err != nil {
			return nil, err
		}
		payout.Amount = driver.CancellationRate

	default:
		amount, err := s.mileagePayout(ctx, trip)
		if err != nil {
			payout.Amount = 0
			payout.Status = domain.PayoutUnconfigured
			metrics.PayoutsUnconfiguredTotal.Inc()
			log.Printf("payout unconfigured: trip=%s driver=%s: %v", trip.ID, trip.DriverID, err)
		} else {
			payout.Amount = amount
		}
	}

	if err := s.payoutRepo.Create(ctx, payout); err != nil {
		return nil, err
	}

	return payout, nil
}

// mileagePayout selects the tier containing the trip's whole-mile
// distance. Distance beyond the highest tier earns that tier's flat rate
// plus the driver's additional-mile rate for each mile past the bound.
func (s *PayoutService) mileagePayout(ctx context.Context, trip *domain.Trip) (float64, error) {
	distance := int(math.Round(trip.MileageMiles))

	tiers, err := s.rateRepo.ListByDriver(ctx, trip.DriverID, trip.ServiceLevel)
	if err != nil {
		return 0, err
	}
	if len(tiers) == 0 {
		return 0, ErrRateMisconfigured
	}

	var highest *domain.RateTier
	for _, tier := range tiers {
		if distance >= tier.FromMiles && distance <= tier.ToMiles {
			return tier.FlatRate, nil
		}
		if highest == nil || tier.ToMiles > highest.ToMiles {
			highest = tier
		}
	}

	if distance > highest.ToMiles {
		driver, err := s.driverRepo.GetByID(ctx, trip.DriverID)
		if err != nil {
			return 0, err
		}
		extra := float64(distance-highest.ToMiles) * driver.AdditionalMileRate
		return highest.FlatRate + extra, nil
	}

	// Distance falls into a gap between configured tiers.
	return 0, ErrRateMisconfigured
}

// GetByTrip retrieves the payout recorded for a trip, nil if none.
func (s *PayoutService) GetByTrip(ctx context.Context, tripID string) (*domain.DriverPayout, error) {
	if tripID == "" {
		return nil, ErrInvalidTripID
	}
	return s.payoutRepo.GetByTrip(ctx, tripID)
}
