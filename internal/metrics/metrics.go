package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ValidationsTotal counts validate calls by outcome ("valid" or the rejection reason).
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_validations_total",
		Help: "Total number of license key validations by outcome",
	}, []string{"outcome"})

	// ActivationsTotal counts first-use device bindings.
	ActivationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "license_activations_total",
		Help: "Total number of first-use device bindings",
	})

	// KeysGenerated counts issued keys by duration class.
	KeysGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_keys_generated_total",
		Help: "Total number of license keys generated",
	}, []string{"type"})

	// AdminActions counts administrative operations by action and result.
	AdminActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "license_admin_actions_total",
		Help: "Total number of administrative actions",
	}, []string{"action", "result"})

	// ActivityWriteFailures counts dropped audit log writes.
	ActivityWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "license_activity_write_failures_total",
		Help: "Total number of activity log entries that could not be written",
	})

	// HTTPRequestDuration tracks handler latency per route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "license_http_request_duration_seconds",
		Help:    "Histogram of HTTP request processing duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
