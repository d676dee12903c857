package service

import (
	"medtransit/internal/domain"
)

// statusGraph is the closed adjacency map of legal trip transitions.
// Terminal statuses have no outgoing edges; leaving them requires the
// explicit reinstate operation.
var statusGraph = map[domain.TripStatus][]domain.TripStatus{
	domain.TripStatusPending:    {domain.TripStatusScheduled, domain.TripStatusAssigned, domain.TripStatusCancelled},
	domain.TripStatusScheduled:  {domain.TripStatusAssigned, domain.TripStatusCancelled, domain.TripStatusNoShow},
	domain.TripStatusAssigned:   {domain.TripStatusEnRoute, domain.TripStatusScheduled, domain.TripStatusCancelled, domain.TripStatusNoShow},
	domain.TripStatusEnRoute:    {domain.TripStatusArrived, domain.TripStatusCancelled, domain.TripStatusNoShow},
	domain.TripStatusArrived:    {domain.TripStatusInProgress, domain.TripStatusCancelled, domain.TripStatusNoShow},
	domain.TripStatusInProgress: {domain.TripStatusDroppedOff, domain.TripStatusCompleted, domain.TripStatusCancelled},
	domain.TripStatusDroppedOff: {domain.TripStatusCompleted},
	domain.TripStatusCompleted:  {},
	domain.TripStatusCancelled:  {},
	domain.TripStatusNoShow:     {},
}

// ValidateTransition checks whether a trip may move to target. It is a
// pure function: rejected attempts must leave no trace anywhere.
func ValidateTransition(current, target domain.TripStatus) error {
	if !domain.KnownTripStatuses[target] {
		return ErrUnknownStatus
	}

	if current.IsTerminal() {
		return ErrTripTerminal
	}

	for _, allowed := range statusGraph[current] {
		if allowed == target {
			return nil
		}
	}

	return ErrInvalidTransition
}
