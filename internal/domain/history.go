package domain

import "time"

// ChangeType categorizes a status history entry.
type ChangeType string

const (
	ChangeTypeStatus     ChangeType = "status_change"
	ChangeTypeAssignment ChangeType = "assignment"
	ChangeTypeReinstate  ChangeType = "reinstate"
	ChangeTypeNote       ChangeType = "note"
)

// StatusHistoryEntry is one immutable audit record for a trip.
// Entries are append-only: never updated, never deleted.
type StatusHistoryEntry struct {
	ID         string
	TripID     string
	FromStatus TripStatus // empty for trip creation
	ToStatus   TripStatus
	ChangeType ChangeType
	Actor      string
	Reason     string
	CreatedAt  time.Time
}
