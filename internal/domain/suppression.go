package domain

import "time"

// SuppressionEntry records a per-address, per-channel opt-out. It is the
// only entity that is legitimately re-activated (resubscribe) rather
// than superseded. Keyed by the normalized address.
type SuppressionEntry struct {
	Address        string // normalized
	Channel        NotificationChannel
	Suppressed     bool
	SuppressedAt   time.Time
	ResubscribedAt time.Time
}
