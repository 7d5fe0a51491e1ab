package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Admissions counts quota decisions by kind (message|media) and result (allowed|rejected|owner).
	Admissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "haste",
			Name:      "admissions_total",
			Help:      "Quota admission decisions.",
		},
		[]string{"kind", "result"},
	)

	// ProviderAttempts counts completion attempts by provider and result (ok|error).
	ProviderAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "haste",
			Name:      "provider_attempts_total",
			Help:      "Completion provider attempts.",
		},
		[]string{"provider", "result"},
	)

	// ProviderLatency observes completion attempt latency per provider.
	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "haste",
			Name:      "provider_latency_seconds",
			Help:      "Completion provider attempt latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// MediaRequests counts media generations by kind (image|video) and result (ok|error).
	MediaRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "haste",
			Name:      "media_requests_total",
			Help:      "Media generation requests.",
		},
		[]string{"kind", "result"},
	)

	// Replies counts finished chat requests by terminal path.
	Replies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "haste",
			Name:      "replies_total",
			Help:      "Chat replies by lifecycle outcome.",
		},
		[]string{"outcome"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
