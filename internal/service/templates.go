package service

import (
	"fmt"
	"time"

	"medtransit/internal/domain"
)

// EventType identifies a state change the dispatcher reacts to.
type EventType string

const (
	EventTripCancelled         EventType = "trip_cancelled"
	EventTripNoShow            EventType = "trip_no_show"
	EventConfirmationConfirmed EventType = "confirmation_confirmed"
	EventConfirmationDeclined  EventType = "confirmation_declined"
)

// templateKey selects a notification template.
type templateKey struct {
	Event    EventType
	Category domain.NotificationCategory
}

// tripFields is the substitution data available to templates.
type tripFields struct {
	TripID    string
	PickupAt  string
	Pickup    string
	Dropoff   string
	RiderName string
	Reason    string
}

// notificationTemplates is the fixed registry of outbound message bodies,
// keyed by (event type, recipient category).
var notificationTemplates = map[templateKey]func(tripFields) string{
	{EventTripCancelled, domain.NotificationDriverAlert}: func(f tripFields) string {
		return fmt.Sprintf("Trip %s (%s pickup at %s) was cancelled: %s", f.TripID, f.PickupAt, f.Pickup, f.Reason)
	},
	{EventTripCancelled, domain.NotificationFacilityAlert}: func(f tripFields) string {
		return fmt.Sprintf("Trip %s scheduled %s from %s to %s was cancelled: %s", f.TripID, f.PickupAt, f.Pickup, f.Dropoff, f.Reason)
	},
	{EventTripNoShow, domain.NotificationDriverAlert}: func(f tripFields) string {
		return fmt.Sprintf("Trip %s (%s pickup at %s) was marked no-show: %s", f.TripID, f.PickupAt, f.Pickup, f.Reason)
	},
	{EventTripNoShow, domain.NotificationFacilityAlert}: func(f tripFields) string {
		return fmt.Sprintf("Trip %s scheduled %s from %s was marked no-show: %s", f.TripID, f.PickupAt, f.Pickup, f.Reason)
	},
	{EventConfirmationConfirmed, domain.NotificationDriverAlert}: func(f tripFields) string {
		return fmt.Sprintf("Rider confirmed trip %s, pickup %s at %s", f.TripID, f.PickupAt, f.Pickup)
	},
	{EventConfirmationDeclined, domain.NotificationDriverAlert}: func(f tripFields) string {
		return fmt.Sprintf("Rider declined trip %s, pickup %s at %s", f.TripID, f.PickupAt, f.Pickup)
	},
	{EventConfirmationDeclined, domain.NotificationFacilityAlert}: func(f tripFields) string {
		return fmt.Sprintf("Rider declined trip %s scheduled %s from %s", f.TripID, f.PickupAt, f.Pickup)
	},
}

// renderTemplate produces the message body for an event and recipient
// category. The bool is false when no template is registered for the key.
func renderTemplate(event EventType, category domain.NotificationCategory, trip *domain.Trip, reason string) (string, bool) {
	render, ok := notificationTemplates[templateKey{event, category}]
	if !ok {
		return "", false
	}

	pickupAt := "will-call"
	if !trip.ScheduledPickupAt.IsZero() {
		pickupAt = trip.ScheduledPickupAt.Format("Mon Jan 2 3:04 PM")
	}

	return render(tripFields{
		TripID:   trip.ID,
		PickupAt: pickupAt,
		Pickup:   trip.PickupAddress,
		Dropoff:  trip.DropoffAddress,
		Reason:   reason,
	}), true
}

// Rider-facing confirmation messages, sent directly over the SMS channel
// by the confirmation coordinator.
func confirmationAskBody(trip *domain.Trip) string {
	if trip.ScheduledPickupAt.IsZero() {
		return fmt.Sprintf("You have an upcoming will-call trip from %s. Reply YES to confirm or NO to cancel.", trip.PickupAddress)
	}
	return fmt.Sprintf("You have a trip scheduled %s from %s. Reply YES to confirm or NO to cancel.",
		trip.ScheduledPickupAt.Format("Mon Jan 2 3:04 PM"), trip.PickupAddress)
}

func confirmationRepromptBody() string {
	return "Sorry, we didn't understand that. Reply YES to confirm your trip or NO to cancel."
}

func confirmationAckBody(status domain.ConfirmationStatus, pickupAt time.Time) string {
	switch status {
	case domain.ConfirmationConfirmed:
		if pickupAt.IsZero() {
			return "Thanks, your trip is confirmed."
		}
		return fmt.Sprintf("Thanks, your trip is confirmed for %s.", pickupAt.Format("Mon Jan 2 3:04 PM"))
	case domain.ConfirmationDeclined:
		return "Your trip has been declined. Contact your facility to reschedule."
	default:
		return ""
	}
}
