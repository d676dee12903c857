package domain

import "time"

// NotificationCategory identifies who a notification targets.
type NotificationCategory string

const (
	NotificationDriverAlert   NotificationCategory = "driver_alert"
	NotificationFacilityAlert NotificationCategory = "facility_alert"
)

// NotificationChannel is the outbound delivery channel.
type NotificationChannel string

const (
	ChannelSMS   NotificationChannel = "sms"
	ChannelEmail NotificationChannel = "email"
)

// NotificationJobStatus is the delivery state of a job.
type NotificationJobStatus string

const (
	NotificationJobPending NotificationJobStatus = "pending"
	NotificationJobSent    NotificationJobStatus = "sent"
	NotificationJobFailed  NotificationJobStatus = "failed"
)

// NotificationJob is one attempted outbound message tied to a triggering
// trip or confirmation event. A job is mutated exactly once by its
// delivery attempt; a retry is a new job so history is preserved.
type NotificationJob struct {
	ID          string
	TripID      string
	Category    NotificationCategory
	Channel     NotificationChannel
	Recipient   string
	Body        string
	Status      NotificationJobStatus
	ErrorDetail string
	ProviderRef string
	CreatedAt   time.Time
	SentAt      time.Time
}
