package service

import "errors"

var (
	// ErrInvalidTransition is returned when the requested status is not
	// reachable from the trip's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTripTerminal is returned when mutating a trip that already
	// reached a terminal status.
	ErrTripTerminal = errors.New("trip is in a terminal status")

	// ErrUnknownStatus is returned for a status outside the closed enum.
	ErrUnknownStatus = errors.New("unknown trip status")

	// ErrTripNotTerminal is returned when reinstating a trip that is
	// still open.
	ErrTripNotTerminal = errors.New("trip is not in a terminal status")

	// ErrMissingReason is returned when a cancellation or no-show is
	// attempted without a reason.
	ErrMissingReason = errors.New("reason required for this transition")

	// ErrTripBusy is returned when another mutation holds the trip lock.
	ErrTripBusy = errors.New("trip is locked by a concurrent operation")

	// ErrInvalidTripID is returned when the trip ID is empty.
	ErrInvalidTripID = errors.New("invalid trip id")

	// ErrInvalidDriverID is returned when the driver ID is empty.
	ErrInvalidDriverID = errors.New("invalid driver id")

	// ErrMissingScheduledTime is returned when creating a non-will-call
	// trip without a scheduled pickup time.
	ErrMissingScheduledTime = errors.New("scheduled pickup time required for non-will-call trip")

	// ErrNoPendingConfirmation is returned when an inbound reply cannot
	// be matched to any open confirmation request. Callers must surface
	// this for dispatcher attention, never drop it.
	ErrNoPendingConfirmation = errors.New("no pending confirmation for sender")

	// ErrConfirmationNotAllowed is returned when requesting a
	// confirmation for a trip that is not in a confirmable state or has
	// no reachable rider contact.
	ErrConfirmationNotAllowed = errors.New("trip not eligible for confirmation request")

	// ErrRecipientSuppressed is returned when issuing a confirmation to
	// an address that opted out of the SMS channel.
	ErrRecipientSuppressed = errors.New("recipient opted out of channel")

	// ErrRateMisconfigured is returned when no rate tier covers the trip
	// distance. The payout stays unset for manual reconciliation.
	ErrRateMisconfigured = errors.New("no rate tier covers trip distance")

	// ErrInvalidAddress is returned when a suppression address is empty
	// after normalization.
	ErrInvalidAddress = errors.New("invalid address")
)
