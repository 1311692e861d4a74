package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values shared with the collectors.
const (
	StatusSucceeded = "succeeded"
	StatusEmpty     = "empty"
	StatusFailed    = "failed"
	StatusCreated   = "created"
	StatusClosed    = "closed"
	StatusSuccess   = "success"
	StatusFailure   = "failure"

	DrainAttempt = "attempt"
	DrainSuccess = "success"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Sink metrics
	Transactions  *prometheus.CounterVec
	Files         *prometheus.CounterVec
	EventsDrained *prometheus.CounterVec
	BytesDrained  prometheus.Counter
	OpenWriters   prometheus.Gauge

	// Consumer metrics
	MessagesConsumed   *prometheus.CounterVec
	OffsetMarks        *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	PartitionsAssigned *prometheus.GaugeVec
	BatchDuration      *prometheus.HistogramVec
	DLQPublished       *prometheus.CounterVec

	// Archive metrics
	ArchiveUploads        *prometheus.CounterVec
	ArchiveUploadDuration *prometheus.HistogramVec
	ArchiveQueueDepth     prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Sink metrics
		Transactions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_transactions_total",
				Help: "Total number of sink transactions by outcome",
			},
			[]string{"status"},
		),
		Files: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_files_total",
				Help: "Total number of output files created, closed or failed",
			},
			[]string{"status"},
		),
		EventsDrained: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sink_events_drained_total",
				Help: "Total number of records taken from the source, attempted and delivered",
			},
			[]string{"result"},
		),
		BytesDrained: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sink_bytes_drained_total",
				Help: "Total number of record body bytes delivered to output files",
			},
		),
		OpenWriters: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sink_open_writers",
				Help: "Number of output files currently open",
			},
		),

		// Consumer metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		OffsetMarks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_marks_total",
				Help: "Total number of batches whose offsets were marked for commit",
			},
			[]string{"topic", "partition"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sink_batch_duration_seconds",
				Help:    "Duration of batch delivery into output files",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"topic"},
		),
		DLQPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_dlq_published_total",
				Help: "Total number of rejected records sent to the dead letter queue",
			},
			[]string{"status"},
		),

		// Archive metrics
		ArchiveUploads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_uploads_total",
				Help: "Total number of published files shipped to the archive backend",
			},
			[]string{"backend", "status"},
		),
		ArchiveUploadDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_upload_duration_seconds",
				Help:    "Duration of archive uploads",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"backend"},
		),
		ArchiveQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "archive_queue_depth",
				Help: "Number of published files waiting for upload",
			},
		),
	}
}

// IncTransactions increments the transaction counter for status.
func (m *Metrics) IncTransactions(status string) {
	m.Transactions.WithLabelValues(status).Inc()
}

// AddEventsDrained adds n records to the drain counter for result.
func (m *Metrics) AddEventsDrained(result string, n int) {
	m.EventsDrained.WithLabelValues(result).Add(float64(n))
}

// AddBytesDrained adds delivered body bytes.
func (m *Metrics) AddBytesDrained(n int) {
	m.BytesDrained.Add(float64(n))
}

func (m *Metrics) IncFilesCreated() {
	m.Files.WithLabelValues(StatusCreated).Inc()
}

func (m *Metrics) IncFilesClosed() {
	m.Files.WithLabelValues(StatusClosed).Inc()
}

func (m *Metrics) IncFilesFailed() {
	m.Files.WithLabelValues(StatusFailed).Inc()
}

// SetOpenWriters sets the open writer gauge.
func (m *Metrics) SetOpenWriters(n int) {
	m.OpenWriters.Set(float64(n))
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncOffsetMarks increments the offset mark counter.
func (m *Metrics) IncOffsetMarks(topic string, partition int32) {
	m.OffsetMarks.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// ObserveBatchDuration observes batch delivery duration.
func (m *Metrics) ObserveBatchDuration(topic string, duration float64) {
	m.BatchDuration.WithLabelValues(topic).Observe(duration)
}

// IncDLQPublished increments the dead letter counter.
func (m *Metrics) IncDLQPublished(status string) {
	m.DLQPublished.WithLabelValues(status).Inc()
}

// IncArchiveUploads increments the archive upload counter.
func (m *Metrics) IncArchiveUploads(backend string, status string) {
	m.ArchiveUploads.WithLabelValues(backend, status).Inc()
}

// ObserveArchiveUploadDuration observes archive upload duration.
func (m *Metrics) ObserveArchiveUploadDuration(backend string, duration float64) {
	m.ArchiveUploadDuration.WithLabelValues(backend).Observe(duration)
}

// SetArchiveQueueDepth sets the archive queue gauge.
func (m *Metrics) SetArchiveQueueDepth(n int) {
	m.ArchiveQueueDepth.Set(float64(n))
}
