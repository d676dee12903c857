package domain

import "time"

// TripStatus represents the current status of a trip.
type TripStatus string

const (
	TripStatusPending    TripStatus = "pending"
	TripStatusScheduled  TripStatus = "scheduled"
	TripStatusAssigned   TripStatus = "assigned"
	TripStatusEnRoute    TripStatus = "en_route"
	TripStatusArrived    TripStatus = "arrived"
	TripStatusInProgress TripStatus = "in_progress"
	TripStatusDroppedOff TripStatus = "dropped_off"
	TripStatusCompleted  TripStatus = "completed"
	TripStatusCancelled  TripStatus = "cancelled"
	TripStatusNoShow     TripStatus = "no_show"
)

// KnownTripStatuses is the closed set of valid trip statuses.
var KnownTripStatuses = map[TripStatus]bool{
	TripStatusPending:    true,
	TripStatusScheduled:  true,
	TripStatusAssigned:   true,
	TripStatusEnRoute:    true,
	TripStatusArrived:    true,
	TripStatusInProgress: true,
	TripStatusDroppedOff: true,
	TripStatusCompleted:  true,
	TripStatusCancelled:  true,
	TripStatusNoShow:     true,
}

// IsTerminal reports whether the status closes the trip.
func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted || s == TripStatusCancelled || s == TripStatusNoShow
}

// ServiceLevel represents the level of assistance a trip requires.
type ServiceLevel string

const (
	ServiceLevelAmbulatory ServiceLevel = "ambulatory"
	ServiceLevelWheelchair ServiceLevel = "wheelchair"
	ServiceLevelStretcher  ServiceLevel = "stretcher"
)

// Trip represents a scheduled transport of a rider between two locations.
// Trips are never physically deleted; they end in a terminal status.
// ScheduledPickupAt may be zero only when WillCall is set.
type Trip struct {
	ID                string
	Status            TripStatus
	WillCall          bool
	ScheduledPickupAt time.Time
	PickedUpAt        time.Time
	DroppedOffAt      time.Time
	CancelledAt       time.Time
	DriverID          string // empty until a driver is assigned
	RiderID           string
	RiderPhone        string
	FacilityID        string
	ServiceLevel      ServiceLevel
	Tags              []string
	PickupAddress     string
	DropoffAddress    string
	MileageMiles      float64
	CancelReason      string
	Version           int64 // optimistic concurrency token
	CreatedAt         time.Time
}
