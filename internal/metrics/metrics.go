// Package metrics holds the Prometheus collectors for the admin login flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttempts tracks completed callbacks by outcome category
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourney_admin_login_attempts_total",
			Help: "Admin login callbacks by result category (success, csrf_error, not_authorized, ...)",
		},
		[]string{"result"},
	)

	// LoginDuration tracks the time spent in CompleteLogin
	LoginDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tourney_admin_login_duration_seconds",
			Help:    "Duration of the admin login callback",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ProviderRequests tracks calls to the identity provider
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourney_provider_requests_total",
			Help: "Identity provider HTTP calls by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// ProviderRetries tracks retries scheduled after transient provider failures
	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourney_provider_retries_total",
			Help: "Retries scheduled after transient identity provider failures",
		},
		[]string{"operation"},
	)

	// SessionsCreated counts admin sessions issued
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tourney_admin_sessions_created_total",
			Help: "Admin sessions issued",
		},
	)
)

// RecordLogin records the outcome and duration of one login callback.
func RecordLogin(result string, started time.Time) {
	LoginAttempts.WithLabelValues(result).Inc()
	LoginDuration.Observe(time.Since(started).Seconds())
}

// RecordProviderRequest records one identity provider call.
func RecordProviderRequest(operation, outcome string) {
	ProviderRequests.WithLabelValues(operation, outcome).Inc()
}
