package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipewatch_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipewatch_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	// Ingest metrics
	IngestReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipewatch_ingest_readings_total",
			Help: "Total number of readings received",
		},
		[]string{"asset_id", "status"}, // status: accepted, rejected
	)

	IngestBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipewatch_ingest_batch_size",
			Help:    "Size of reading batches received",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	IngestValidationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipewatch_ingest_validation_errors_total",
			Help: "Total number of validation errors",
		},
		[]string{"error_type"},
	)

	// Evaluation metrics
	ReadingsEvaluatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipewatch_readings_evaluated_total",
			Help: "Total number of readings classified against a policy",
		},
		[]string{"level"},
	)

	EvaluationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipewatch_evaluation_errors_total",
			Help: "Total number of readings rejected by the ledger",
		},
		[]string{"reason"}, // reason: unknown_metric, out_of_order, invalid_policy
	)

	AlertTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipewatch_alert_transitions_total",
			Help: "Total number of alert transitions emitted",
		},
		[]string{"kind"}, // kind: OPENED, UPDATED, CLOSED
	)

	OpenAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipewatch_open_alerts",
			Help: "Number of currently open alert records",
		},
	)

	// Worker metrics
	WorkerQueueSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipewatch_worker_queue_size",
			Help: "Current size of each worker's shard queue",
		},
		[]string{"shard"},
	)

	WorkerQueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipewatch_worker_queue_capacity",
			Help: "Capacity of each worker shard queue",
		},
	)

	WorkerProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipewatch_worker_processed_total",
			Help: "Total number of readings processed by workers",
		},
	)

	WorkerFailedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipewatch_worker_failed_total",
			Help: "Total number of readings failed in workers",
		},
	)

	// Kafka publisher metrics
	KafkaPublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipewatch_kafka_publish_total",
			Help: "Total number of transitions published to Kafka",
		},
		[]string{"status"}, // status: success, failed
	)

	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pipewatch_kafka_publish_duration_seconds",
			Help:    "Time taken to publish to Kafka",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	KafkaPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipewatch_kafka_publish_retries_total",
			Help: "Total number of Kafka publish retries",
		},
	)

	KafkaBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pipewatch_kafka_bytes_written_total",
			Help: "Total bytes written to Kafka",
		},
	)

	// Panic recovery
	PanicsRecovered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipewatch_panics_recovered_total",
			Help: "Total number of panics recovered",
		},
		[]string{"component"},
	)
)
