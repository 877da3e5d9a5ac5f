package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CodeResolves records anonymous profile resolutions by outcome
	// (ok|not_found|expired|error).
	CodeResolves = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexcard_code_resolves_total",
			Help: "Total number of connection code resolutions",
		},
		[]string{"outcome"},
	)

	// CodesIssued counts connection codes minted (issue|rotate).
	CodesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexcard_codes_issued_total",
			Help: "Total number of connection codes issued",
		},
		[]string{"reason"},
	)

	// ScansRecorded counts scan telemetry writes by result (recorded|dropped|failed).
	ScansRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexcard_scans_recorded_total",
			Help: "Total number of scan telemetry events",
		},
		[]string{"result"},
	)

	// Invitations counts invitation workflow transitions (sent|resent|registered|expired).
	Invitations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexcard_invitations_total",
			Help: "Total number of invitation workflow transitions",
		},
		[]string{"event"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexcard_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
