package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "docharvest"

var (
	ExtractionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Total number of extraction runs, labeled by terminal status.",
		},
		[]string{"status"},
	)

	ExtractionDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "End-to-end extraction latency from request to terminal outcome (seconds).",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	AgentRunDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "agent_run_duration_seconds",
			Help:      "Duration of external agent runs (seconds).",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	ArtifactsDiscoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_discovered_total",
			Help:      "Total number of artifacts found in scratch directories after agent runs.",
		},
	)

	ArtifactUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_uploads_total",
			Help:      "Total number of artifact upload attempts, labeled by outcome.",
		},
		[]string{"outcome"},
	)

	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Total number of requests rejected by rate limiting.",
		},
		[]string{"scope", "operation"},
	)

	WebhookDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Total number of completion webhook deliveries, labeled by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		ExtractionsTotal,
		ExtractionDurationSeconds,
		AgentRunDurationSeconds,
		ArtifactsDiscoveredTotal,
		ArtifactUploadsTotal,
		RateLimitHitsTotal,
		WebhookDeliveriesTotal,
	)
}
