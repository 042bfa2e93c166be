// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the engram memory service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// FileIOBuckets defines histogram buckets suited for local file I/O
// request latencies, ranging from 1ms to 10s.
var FileIOBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10}

var (
	// RequestsTotal counts all HTTP requests by method and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engram_requests_total",
			Help: "Total requests",
		},
		[]string{"method", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engram_request_duration_seconds",
			Help:    "Request duration",
			Buckets: FileIOBuckets,
		},
		[]string{"method"},
	)

	// AuthAttemptsTotal counts credential checks by outcome
	// (ok, challenge, rejected).
	AuthAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engram_auth_attempts_total",
			Help: "Credential verification attempts",
		},
		[]string{"outcome"},
	)

	// AuthzDecisionsTotal counts authorization decisions by path category
	// and outcome (allow, deny).
	AuthzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engram_authz_decisions_total",
			Help: "Authorization decisions",
		},
		[]string{"category", "outcome"},
	)

	// BackupsTotal counts pre-mutation snapshots by data category and
	// outcome (ok, failed).
	BackupsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engram_backups_total",
			Help: "Pre-mutation backup snapshots",
		},
		[]string{"category", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		AuthAttemptsTotal,
		AuthzDecisionsTotal,
		BackupsTotal,
	)
}
