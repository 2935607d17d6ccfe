// Package consumer — metrics.go registers all Prometheus metrics for the
// ingestion consumer and exposes helpers used by the poll loop.
package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric outcome label values.
const (
	outcomeOK      = "ok"      // handler succeeded, message acked
	outcomeDropped = "dropped" // terminal validation failure, message acked
	outcomeRetry   = "retry"   // transient failure, message left for redelivery
)

// consumerMetrics holds all Prometheus metrics owned by the consumer.
// A single instance is created in New and stored on Consumer so that tests
// can inject a fresh prometheus.Registry without polluting the default one.
type consumerMetrics struct {
	// eventsTotal counts processed messages, partitioned by event type and
	// outcome: "ok", "dropped", or "retry".
	eventsTotal *prometheus.CounterVec

	// eventDurationSeconds records the wall-clock handler duration per event type.
	eventDurationSeconds *prometheus.HistogramVec

	// chunksUpsertedTotal counts chunks written to the vector index.
	chunksUpsertedTotal prometheus.Counter

	// chunksDeletedTotal counts chunks removed from the vector index.
	chunksDeletedTotal prometheus.Counter

	// receiveErrorsTotal counts failed queue receive rounds.
	receiveErrorsTotal prometheus.Counter
}

// newConsumerMetrics registers all consumer metrics against reg and returns
// the populated consumerMetrics. promauto.With(reg) is used so that each call
// registers into the provided registry rather than the global default —
// this keeps unit tests hermetic.
func newConsumerMetrics(reg prometheus.Registerer) *consumerMetrics {
	factory := promauto.With(reg)

	return &consumerMetrics{
		eventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "contextd",
			Subsystem: "consumer",
			Name:      "events_total",
			Help:      "Total number of file events processed, partitioned by type and outcome.",
		}, []string{"type", "outcome"}),

		eventDurationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "contextd",
			Subsystem: "consumer",
			Name:      "event_duration_seconds",
			Help:      "Wall-clock duration of event handling, from parse to index mutation.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"type"}),

		chunksUpsertedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contextd",
			Subsystem: "consumer",
			Name:      "chunks_upserted_total",
			Help:      "Total number of chunks written to the vector index.",
		}),

		chunksDeletedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contextd",
			Subsystem: "consumer",
			Name:      "chunks_deleted_total",
			Help:      "Total number of chunks removed from the vector index.",
		}),

		receiveErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "contextd",
			Subsystem: "consumer",
			Name:      "queue_receive_errors_total",
			Help:      "Total number of failed queue receive rounds.",
		}),
	}
}
