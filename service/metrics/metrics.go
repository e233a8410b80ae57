package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC metrics
	rpcCallsTotal        *prometheus.CounterVec
	rpcCallDuration      *prometheus.HistogramVec
	rpcFailoversTotal    *prometheus.CounterVec
	rpcRetryRoundsTotal  *prometheus.CounterVec
	rpcSignaturesPerPage prometheus.Histogram

	// Record processing metrics
	recordsFetchedTotal prometheus.Counter
	recordsDroppedTotal *prometheus.CounterVec
	recordsWrittenTotal prometheus.Counter

	// Dataset metrics
	partitionsWrittenTotal prometheus.Counter
	checkpointSavesTotal   *prometheus.CounterVec

	// Sync round metrics
	syncRoundsTotal   *prometheus.CounterVec
	syncRoundDuration prometheus.Histogram

	// NATS metrics
	natsMessagesPublished *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method, status and endpoint",
			},
			[]string{"method", "status", "endpoint"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"method", "endpoint"},
		),
		rpcFailoversTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_failovers_total",
				Help: "Total number of times the client advanced past a failing endpoint",
			},
			[]string{"endpoint"},
		),
		rpcRetryRoundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retry_rounds_total",
				Help: "Total number of full retry rounds after all endpoints failed",
			},
			[]string{"method"},
		),
		rpcSignaturesPerPage: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_signatures_per_page",
				Help:    "Number of signatures returned per GetSignaturesForAddress page",
				Buckets: []float64{1, 10, 50, 100, 250, 500, 1000},
			},
		),

		recordsFetchedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "records_fetched_total",
				Help: "Total number of transaction records fetched and normalized",
			},
		),
		recordsDroppedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "records_dropped_total",
				Help: "Total number of transaction records dropped during normalization",
			},
			[]string{"reason"},
		),
		recordsWrittenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "records_written_total",
				Help: "Total number of transaction records written to dataset partitions",
			},
		),

		partitionsWrittenTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "dataset_partitions_written_total",
				Help: "Total number of dataset partition files written",
			},
		),
		checkpointSavesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkpoint_saves_total",
				Help: "Total number of checkpoint save attempts by status",
			},
			[]string{"status"},
		),

		syncRoundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_rounds_total",
				Help: "Total number of sync rounds by outcome",
			},
			[]string{"outcome"},
		),
		syncRoundDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sync_round_duration_seconds",
				Help:    "Duration of full sync rounds in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of record events published to NATS by status",
			},
			[]string{"status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with its duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, durationSeconds float64) {
	m.rpcCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.rpcCallDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordFailover records that the client advanced past a failing endpoint.
func (m *Metrics) RecordFailover(endpoint string) {
	m.rpcFailoversTotal.WithLabelValues(endpoint).Inc()
}

// RecordRetryRound records a full retry round after all endpoints failed.
func (m *Metrics) RecordRetryRound(method string) {
	m.rpcRetryRoundsTotal.WithLabelValues(method).Inc()
}

// RecordSignaturesPerPage records the size of a signature page.
func (m *Metrics) RecordSignaturesPerPage(count float64) {
	m.rpcSignaturesPerPage.Observe(count)
}

// RecordRecordsFetched records successfully normalized records.
func (m *Metrics) RecordRecordsFetched(count float64) {
	m.recordsFetchedTotal.Add(count)
}

// RecordRecordDropped records a record dropped during normalization.
func (m *Metrics) RecordRecordDropped(reason string) {
	m.recordsDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordRecordsWritten records records persisted to partitions.
func (m *Metrics) RecordRecordsWritten(count float64) {
	m.recordsWrittenTotal.Add(count)
}

// RecordPartitionWritten records a partition file write.
func (m *Metrics) RecordPartitionWritten() {
	m.partitionsWrittenTotal.Inc()
}

// RecordCheckpointSave records a checkpoint save attempt.
func (m *Metrics) RecordCheckpointSave(status string) {
	m.checkpointSavesTotal.WithLabelValues(status).Inc()
}

// RecordSyncRound records a completed sync round with its outcome.
func (m *Metrics) RecordSyncRound(outcome string, durationSeconds float64) {
	m.syncRoundsTotal.WithLabelValues(outcome).Inc()
	m.syncRoundDuration.Observe(durationSeconds)
}

// RecordNATSPublish records a NATS publish attempt.
func (m *Metrics) RecordNATSPublish(status string) {
	m.natsMessagesPublished.WithLabelValues(status).Inc()
}
