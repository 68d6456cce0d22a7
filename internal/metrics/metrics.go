package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream MLS API
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_upstream_requests_total",
			Help: "Requests sent to the MLS API by response status class",
		},
		[]string{"status"}, // "2xx", "4xx", "5xx", "error"
	)

	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_upstream_retries_total",
			Help: "Backoff retries performed against the MLS API",
		},
		[]string{"reason"}, // "rate_limited", "server_error", "network"
	)

	UpstreamRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mls_upstream_request_duration_seconds",
			Help:    "Latency of single MLS API requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_token_refreshes_total",
			Help: "Client-credentials token requests by result",
		},
		[]string{"result"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mls_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_circuit_breaker_state_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Sync engine
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_sync_resource_runs_total",
			Help: "Resource sync runs by outcome",
		},
		[]string{"resource", "outcome"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mls_sync_duration_seconds",
			Help:    "Duration of one resource sync run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"resource"},
	)

	SyncRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_sync_records_total",
			Help: "Records processed by the sync engine",
		},
		[]string{"resource", "stage"}, // stage: "fetched", "upserted", "skipped"
	)

	SyncPages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_sync_pages_total",
			Help: "Pages fetched by the sync engine",
		},
		[]string{"resource"},
	)

	SyncErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_sync_errors_total",
			Help: "Failed resource runs by error kind",
		},
		[]string{"resource", "error_kind"},
	)

	SyncWatermark = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mls_sync_watermark_timestamp_seconds",
			Help: "Unix timestamp of the last persisted watermark",
		},
		[]string{"resource"},
	)

	SyncLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mls_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful run",
		},
		[]string{"resource"},
	)

	OrchestratedRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mls_sync_orchestrated_runs_total",
			Help: "Orchestrated invocations by trigger and result",
		},
		[]string{"trigger", "ok"},
	)
)

func RecordUpstreamRequest(status int, duration time.Duration, err error) {
	UpstreamRequestDuration.Observe(duration.Seconds())
	if err != nil {
		UpstreamRequests.WithLabelValues("error").Inc()
		return
	}
	UpstreamRequests.WithLabelValues(strconv.Itoa(status/100) + "xx").Inc()
}

// RecordResourceRun records the counters of one resource run. errorKind is
// empty when the run succeeded.
func RecordResourceRun(resource, outcome string, pages, fetched, upserted, skipped int, duration time.Duration, errorKind string) {
	SyncRuns.WithLabelValues(resource, outcome).Inc()
	SyncDuration.WithLabelValues(resource).Observe(duration.Seconds())
	SyncPages.WithLabelValues(resource).Add(float64(pages))
	SyncRecords.WithLabelValues(resource, "fetched").Add(float64(fetched))
	SyncRecords.WithLabelValues(resource, "upserted").Add(float64(upserted))
	SyncRecords.WithLabelValues(resource, "skipped").Add(float64(skipped))
	if errorKind != "" {
		SyncErrors.WithLabelValues(resource, errorKind).Inc()
	}
}

func RecordWatermark(resource string, watermark, finishedAt time.Time) {
	if !watermark.IsZero() {
		SyncWatermark.WithLabelValues(resource).Set(float64(watermark.Unix()))
	}
	SyncLastSuccess.WithLabelValues(resource).Set(float64(finishedAt.Unix()))
}

func RecordOrchestratedRun(trigger string, ok bool) {
	OrchestratedRuns.WithLabelValues(trigger, strconv.FormatBool(ok)).Inc()
}
