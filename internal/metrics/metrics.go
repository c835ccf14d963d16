// v1
// internal/metrics/metrics.go
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_http_requests_total",
			Help: "Total number of HTTP requests served.",
		},
		[]string{"route", "method", "status"},
	)
	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telemetry_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	ingestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_ingest_total",
			Help: "Ingested readings grouped by outcome.",
		},
		[]string{"outcome"},
	)

	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_cache_lookups_total",
			Help: "Result-cache lookups grouped by hit or miss.",
		},
		[]string{"result"},
	)
	cacheSharedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_cache_singleflight_shared_total",
			Help: "Callers that joined an in-flight computation instead of starting one.",
		},
	)

	kafkaMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_kafka_messages_total",
			Help: "Kafka telemetry messages grouped by outcome.",
		},
		[]string{"outcome"},
	)
)

// ObserveHTTPRequest records one served request.
func ObserveHTTPRequest(route, method string, status int, dur time.Duration) {
	httpRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	httpRequestDurationSeconds.WithLabelValues(route, method).Observe(dur.Seconds())
}

// Ingest outcomes.
const (
	IngestAccepted      = "accepted"
	IngestInvalid       = "rejected_invalid"
	IngestUnknownDevice = "rejected_unknown_device"
	IngestFailed        = "failed"
)

// ObserveIngest records one ingest attempt with its outcome label.
func ObserveIngest(outcome string) {
	ingestTotal.WithLabelValues(outcome).Inc()
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	if hit {
		cacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	cacheLookupsTotal.WithLabelValues("miss").Inc()
}

// ObserveCacheShared records a caller that piggybacked on an in-flight
// computation.
func ObserveCacheShared() {
	cacheSharedTotal.Inc()
}

// Kafka outcomes.
const (
	KafkaAccepted = "accepted"
	KafkaInvalid  = "invalid"
	KafkaFailed   = "failed"
)

// ObserveKafkaMessage records one consumed telemetry message.
func ObserveKafkaMessage(outcome string) {
	kafkaMessagesTotal.WithLabelValues(outcome).Inc()
}
