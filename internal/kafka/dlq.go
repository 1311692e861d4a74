package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/consumer"
	"github.com/jittakal/kafeventsink/pkg/event"
)

// Ensure implementation satisfies interface at compile time.
var _ consumer.DLQPublisher = (*DLQPublisher)(nil)

// DLQ publish outcomes reported to DLQMetricsCollector.
const (
	dlqStatusSuccess = "success"
	dlqStatusFailure = "failure"
)

// DLQEvent is the envelope written to the dead letter topic.
// Body is base64 encoded by encoding/json so binary records survive intact.
type DLQEvent struct {
	Key               string            `json:"key,omitempty"`
	HasKey            bool              `json:"has_key"`
	Body              []byte            `json:"body"`
	OriginalTopic     string            `json:"original_topic"`
	OriginalPartition int32             `json:"original_partition"`
	OriginalOffset    int64             `json:"original_offset"`
	Headers           map[string]string `json:"headers,omitempty"`
	FailureReason     string            `json:"failure_reason"`
	FailureTimestamp  time.Time         `json:"failure_timestamp"`
	ProcessorID       string            `json:"processor_id"`
}

// DLQConfig contains DLQ configuration.
type DLQConfig struct {
	Enabled     bool
	TopicSuffix string
	MaxRetries  int
}

// DLQMetricsCollector counts dead letter publishes by status.
type DLQMetricsCollector interface {
	IncDLQPublished(status string)
}

// DLQPublisher parks records the sink refused on "<topic><suffix>".
type DLQPublisher struct {
	producer    sarama.SyncProducer
	config      DLQConfig
	logger      *slog.Logger
	metrics     DLQMetricsCollector
	now         func() time.Time
	mu          sync.RWMutex
	closed      bool
	processorID string
}

// NewDLQPublisher creates a new DLQ publisher. A disabled DLQ accepts and drops
// every record without opening a producer.
func NewDLQPublisher(
	securityConfig ConsumerConfig,
	dlqConfig DLQConfig,
	logger *slog.Logger,
	metrics DLQMetricsCollector,
	processorID string,
) (*DLQPublisher, error) {
	if !dlqConfig.Enabled {
		logger.Info("DLQ is disabled")
		return newDLQPublisher(nil, dlqConfig, logger, metrics, processorID), nil
	}

	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = dlqConfig.MaxRetries
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Return.Errors = true
	saramaConfig.Producer.Compression = sarama.CompressionSnappy
	saramaConfig.Producer.Idempotent = true
	saramaConfig.Net.MaxOpenRequests = 1

	// Security configuration (reuse consumer security)
	if err := configureSecurity(saramaConfig, securityConfig); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	producer, err := sarama.NewSyncProducer(securityConfig.BootstrapServers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create sync producer: %w", err)
	}

	logger.Info("DLQ publisher created",
		"bootstrap_servers", securityConfig.BootstrapServers,
		"topic_suffix", dlqConfig.TopicSuffix,
	)

	return newDLQPublisher(producer, dlqConfig, logger, metrics, processorID), nil
}

func newDLQPublisher(
	producer sarama.SyncProducer,
	config DLQConfig,
	logger *slog.Logger,
	metrics DLQMetricsCollector,
	processorID string,
) *DLQPublisher {
	if metrics == nil {
		metrics = noopDLQMetrics{}
	}
	return &DLQPublisher{
		producer:    producer,
		config:      config,
		logger:      logger,
		metrics:     metrics,
		now:         time.Now,
		processorID: processorID,
	}
}

// Reject publishes record to the DLQ. It satisfies sink.Rejecter.
func (p *DLQPublisher) Reject(ctx context.Context, record event.Record, reason string) error {
	return p.Publish(ctx, record, reason)
}

// Publish sends a record to the DLQ with a failure reason.
func (p *DLQPublisher) Publish(ctx context.Context, record event.Record, reason string) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return errors.ErrConsumerClosed
	}

	if !p.config.Enabled {
		p.logger.Debug("DLQ disabled, dropping record",
			"topic", record.Kafka.Topic,
			"offset", record.Kafka.Offset,
			"reason", reason)
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	dlqTopic := record.Kafka.Topic + p.config.TopicSuffix
	failedAt := p.now().UTC()

	dlqData, err := json.Marshal(DLQEvent{
		Key:               record.Key,
		HasKey:            record.HasKey,
		Body:              record.Body,
		OriginalTopic:     record.Kafka.Topic,
		OriginalPartition: record.Kafka.Partition,
		OriginalOffset:    record.Kafka.Offset,
		Headers:           record.Kafka.Headers,
		FailureReason:     reason,
		FailureTimestamp:  failedAt,
		ProcessorID:       p.processorID,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal DLQ event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: dlqTopic,
		Value: sarama.ByteEncoder(dlqData),
		Headers: []sarama.RecordHeader{
			{Key: []byte("failure_reason"), Value: []byte(reason)},
			{Key: []byte("original_topic"), Value: []byte(record.Kafka.Topic)},
			{Key: []byte("processor_id"), Value: []byte(p.processorID)},
		},
		Timestamp: failedAt,
	}
	if len(record.Kafka.Key) > 0 {
		msg.Key = sarama.ByteEncoder(record.Kafka.Key)
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		p.metrics.IncDLQPublished(dlqStatusFailure)
		p.logger.Error("failed to publish to DLQ",
			"error", err,
			"dlq_topic", dlqTopic,
			"original_offset", record.Kafka.Offset,
		)
		return fmt.Errorf("failed to send message to DLQ: %w", err)
	}

	p.metrics.IncDLQPublished(dlqStatusSuccess)
	p.logger.Info("published record to DLQ",
		"dlq_topic", dlqTopic,
		"partition", partition,
		"offset", offset,
		"original_offset", record.Kafka.Offset,
		"reason", reason,
	)

	return nil
}

// Close closes the DLQ publisher.
func (p *DLQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true
	p.logger.Info("closing DLQ publisher")

	if p.producer != nil {
		if err := p.producer.Close(); err != nil {
			p.logger.Error("error closing producer", "error", err)
			return err
		}
	}

	p.logger.Info("DLQ publisher closed")
	return nil
}

type noopDLQMetrics struct{}

func (noopDLQMetrics) IncDLQPublished(string) {}
