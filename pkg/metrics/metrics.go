package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: "flowdeck", Name: "ws_connections", Help: "Currently open realtime connections."},
	)
	LocksGranted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "flowdeck", Name: "locks_granted_total", Help: "Edit lock acquisitions granted (including TTL refreshes)."},
	)
	LocksDenied = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "flowdeck", Name: "locks_denied_total", Help: "Edit lock acquisitions denied because another identity holds the lock."},
	)
	LocksReleased = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "flowdeck", Name: "locks_released_total", Help: "Edit locks released explicitly or by disconnect cleanup."},
	)
	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "flowdeck", Name: "sessions_created_total", Help: "Collaboration sessions created."},
	)
	SessionsEnded = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "flowdeck", Name: "sessions_ended_total", Help: "Collaboration sessions ended by last leave or TTL expiry."},
	)
	BroadcastEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "flowdeck", Name: "broadcast_events_total", Help: "Events published to rooms by event type."},
		[]string{"event"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "flowdeck", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "flowdeck", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		WSConnections,
		LocksGranted,
		LocksDenied,
		LocksReleased,
		SessionsCreated,
		SessionsEnded,
		BroadcastEvents,
		RateLimitAllowed,
		RateLimitRejected,
	)
}
