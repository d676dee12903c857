package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the trip lifecycle and notification engine.
var (
	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trip_transitions_total",
			Help: "Total number of accepted trip status transitions",
		},
		[]string{"to_status"},
	)

	TransitionsRejectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trip_transitions_rejected_total",
			Help: "Total number of rejected trip status transitions",
		},
	)

	NotificationJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_jobs_total",
			Help: "Total number of notification jobs by category and outcome",
		},
		[]string{"category", "status"},
	)

	NotificationsSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_suppressed_total",
			Help: "Total number of notifications skipped for opted-out recipients",
		},
	)

	InboundRepliesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmation_inbound_replies_total",
			Help: "Total number of inbound rider replies by classified intent",
		},
		[]string{"intent"},
	)

	ConfirmationsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "confirmations_expired_total",
			Help: "Total number of confirmation requests expired by the sweeper",
		},
	)

	UnmatchedRepliesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "confirmation_unmatched_replies_total",
			Help: "Total number of inbound replies with no pending confirmation",
		},
	)

	PayoutsUnconfiguredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payouts_unconfigured_total",
			Help: "Total number of payouts left unset due to rate misconfiguration",
		},
	)

	DeliveryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notification_delivery_duration_seconds",
			Help:    "Duration of outbound gateway delivery attempts",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all engine metrics with the default registry.
func Register() {
	prometheus.MustRegister(
		TransitionsTotal,
		TransitionsRejectedTotal,
		NotificationJobsTotal,
		NotificationsSuppressedTotal,
		InboundRepliesTotal,
		ConfirmationsExpiredTotal,
		UnmatchedRepliesTotal,
		PayoutsUnconfiguredTotal,
		DeliveryDuration,
	)
}
