package domain

import "time"

// ConfirmationStatus represents the state of a rider confirmation request.
type ConfirmationStatus string

const (
	ConfirmationAwaitingResponse ConfirmationStatus = "awaiting_response"
	ConfirmationConfirmed        ConfirmationStatus = "confirmed"
	ConfirmationDeclined         ConfirmationStatus = "declined"
	ConfirmationUnclear          ConfirmationStatus = "unclear"
	ConfirmationExpired          ConfirmationStatus = "expired"
)

// IsTerminal reports whether the confirmation can no longer change.
// unclear is not terminal: the coordinator re-prompts and waits again.
func (s ConfirmationStatus) IsTerminal() bool {
	return s == ConfirmationConfirmed || s == ConfirmationDeclined || s == ConfirmationExpired
}

// ResolutionChannel records how a confirmation was resolved.
type ResolutionChannel string

const (
	ResolutionChannelSMS    ResolutionChannel = "sms"
	ResolutionChannelManual ResolutionChannel = "manual"
)

// ConfirmationRequest is an outstanding ask to a rider to affirm or
// decline an upcoming trip. At most one non-terminal request exists per
// trip at any time.
type ConfirmationRequest struct {
	ID              string
	TripID          string
	Status          ConfirmationStatus
	RecipientPhone  string
	NormalizedPhone string // comparison key, see service.NormalizePhone
	ExpiresAt       time.Time
	ReplyText       string
	ReplyAt         time.Time
	ReplyFrom       string
	Channel         ResolutionChannel
	RepromptCount   int
	CreatedAt       time.Time
}

// ReplyIntent classifies the free text of an inbound rider reply.
type ReplyIntent string

const (
	ReplyIntentAffirm  ReplyIntent = "affirm"
	ReplyIntentDecline ReplyIntent = "decline"
	ReplyIntentOptOut  ReplyIntent = "optout"
	ReplyIntentUnclear ReplyIntent = "unclear"
)
