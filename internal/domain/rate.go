package domain

import "time"

// RateTier maps a whole-mile distance range to a flat driver payout for a
// given service level. Tiers for one (driver, service level) pair must
// not overlap and require ToMiles >= FromMiles.
type RateTier struct {
	ID           string
	DriverID     string
	ServiceLevel ServiceLevel
	FromMiles    int
	ToMiles      int
	FlatRate     float64
}

// PayoutStatus marks whether a payout could be derived from rate config.
type PayoutStatus string

const (
	PayoutCalculated   PayoutStatus = "calculated"
	PayoutUnconfigured PayoutStatus = "unconfigured"
)

// DriverPayout is the compensation derived for a terminally statused trip.
// An unconfigured payout stays at zero and waits for manual reconciliation.
type DriverPayout struct {
	ID        string
	TripID    string
	DriverID  string
	Amount    float64
	Status    PayoutStatus
	CreatedAt time.Time
}
