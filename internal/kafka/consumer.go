// Package kafka feeds record batches from Kafka into the sink and parks
// unroutable records on a dead letter topic.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/kafeventsink/internal/buffer"
	apperrors "github.com/jittakal/kafeventsink/internal/errors"
	pkgbuffer "github.com/jittakal/kafeventsink/pkg/buffer"
	"github.com/jittakal/kafeventsink/pkg/consumer"
	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/sink"
)

// Ensure implementation satisfies interfaces at compile time.
var (
	_ consumer.Consumer = (*SaramaConsumer)(nil)
)

// ConsumerConfig contains Kafka consumer configuration.
type ConsumerConfig struct {
	BootstrapServers    []string
	GroupID             string
	SecurityProtocol    string
	SASLMechanism       string
	SASLUsername        string
	SASLPassword        string
	AWSRegion           string
	TLSSkipVerify       bool
	AutoOffsetReset     string
	MaxPollIntervalMS   int
	SessionTimeoutMS    int
	HeartbeatIntervalMS int

	// KeyHeader names the message header carrying the routing key.
	KeyHeader string
	// BatchSize is the number of records handed to the sink at once.
	BatchSize int
	// BatchMaxBytes caps the estimated size of a batch. Zero disables the cap.
	BatchMaxBytes int64
	// BatchTimeout delivers a partial batch after this long.
	BatchTimeout time.Duration
	// RetryBackoff is the pause before rejoining after a failed batch.
	RetryBackoff time.Duration
}

// Validate reports the first missing or invalid setting.
func (c ConsumerConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return errors.New("bootstrap servers are required")
	}
	if c.GroupID == "" {
		return errors.New("group ID is required")
	}
	if c.KeyHeader == "" {
		return errors.New("routing key header is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.BatchTimeout <= 0 {
		return fmt.Errorf("batch timeout must be positive, got %s", c.BatchTimeout)
	}
	return nil
}

// MetricsCollector defines metrics operations for Kafka consumer.
type MetricsCollector interface {
	IncMessagesConsumed(topic string, partition int32)
	IncRebalances(groupID string)
	SetPartitionsAssigned(topic string, count float64)
	IncOffsetMarks(topic string, partition int32)
	ObserveBatchDuration(topic string, duration float64)
}

// SaramaConsumer implements consumer.Consumer with a Sarama consumer group.
//
// Each claimed partition accumulates records into a batch. A delivered batch marks
// the offset of its last message; a failed batch ends the session so the group
// resumes from the last marked offset and the batch is consumed again.
type SaramaConsumer struct {
	consumerGroup sarama.ConsumerGroup
	config        ConsumerConfig
	logger        *slog.Logger
	metrics       MetricsCollector
	errorsOnce    sync.Once
	mu            sync.RWMutex
	closed        bool
}

// NewSaramaConsumer creates a new Kafka consumer using Sarama library.
func NewSaramaConsumer(
	config ConsumerConfig,
	logger *slog.Logger,
	metrics MetricsCollector,
) (*SaramaConsumer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid consumer config: %w", err)
	}

	saramaConfig := sarama.NewConfig()

	saramaConfig.Version = sarama.V2_8_0_0
	saramaConfig.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{
		sarama.NewBalanceStrategyRoundRobin(),
	}
	saramaConfig.Consumer.Offsets.Initial = offsetInitial(config.AutoOffsetReset)

	// Offsets are only marked after a batch reached its files; auto commit
	// flushes those marks periodically.
	saramaConfig.Consumer.Offsets.AutoCommit.Enable = true

	if config.SessionTimeoutMS > 0 {
		saramaConfig.Consumer.Group.Session.Timeout = time.Duration(config.SessionTimeoutMS) * time.Millisecond
	}
	if config.HeartbeatIntervalMS > 0 {
		saramaConfig.Consumer.Group.Heartbeat.Interval = time.Duration(config.HeartbeatIntervalMS) * time.Millisecond
	}
	if config.MaxPollIntervalMS > 0 {
		saramaConfig.Consumer.MaxProcessingTime = time.Duration(config.MaxPollIntervalMS) * time.Millisecond
	} else {
		saramaConfig.Consumer.MaxProcessingTime = 5 * time.Minute
	}

	saramaConfig.Consumer.Return.Errors = true

	if err := configureSecurity(saramaConfig, config); err != nil {
		return nil, fmt.Errorf("failed to configure security: %w", err)
	}

	consumerGroup, err := sarama.NewConsumerGroup(
		config.BootstrapServers,
		config.GroupID,
		saramaConfig,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	logger.Info("kafka consumer created",
		"group_id", config.GroupID,
		"bootstrap_servers", config.BootstrapServers,
		"key_header", config.KeyHeader,
		"batch_size", config.BatchSize,
		"batch_timeout", config.BatchTimeout,
	)

	return &SaramaConsumer{
		consumerGroup: consumerGroup,
		config:        config,
		logger:        logger,
		metrics:       metrics,
	}, nil
}

// Run joins the group and delivers batches to processor until ctx is cancelled.
func (c *SaramaConsumer) Run(ctx context.Context, topics []string, processor sink.BatchProcessor) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return apperrors.ErrConsumerClosed
	}
	c.mu.RUnlock()

	c.errorsOnce.Do(func() {
		go c.logErrors()
	})

	handler := newConsumerGroupHandler(c.config, processor, c.logger, c.metrics)

	c.logger.Info("kafka consumer running", "topics", topics)
	for {
		handler.failed.Store(false)

		if err := c.consumerGroup.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return fmt.Errorf("consumer group: %w", err)
		}
		if ctx.Err() != nil {
			return nil
		}

		if handler.failed.Load() {
			c.logger.Warn("batch delivery failed, rejoining after backoff",
				"backoff", c.config.RetryBackoff)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(c.config.RetryBackoff):
			}
		}
	}
}

func (c *SaramaConsumer) logErrors() {
	for err := range c.consumerGroup.Errors() {
		c.logger.Error("consumer group error", "error", err)
	}
}

// Close closes the consumer and releases resources.
func (c *SaramaConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	c.logger.Info("closing kafka consumer")

	if err := c.consumerGroup.Close(); err != nil {
		c.logger.Error("error closing consumer group", "error", err)
		return err
	}

	c.logger.Info("kafka consumer closed")
	return nil
}

// consumerGroupHandler implements sarama.ConsumerGroupHandler.
type consumerGroupHandler struct {
	config    ConsumerConfig
	processor sink.BatchProcessor
	logger    *slog.Logger
	metrics   MetricsCollector
	buffers   *buffer.Manager
	failed    atomic.Bool
}

func newConsumerGroupHandler(config ConsumerConfig, processor sink.BatchProcessor, logger *slog.Logger, metrics MetricsCollector) *consumerGroupHandler {
	limits := pkgbuffer.Limits{MaxRecords: config.BatchSize, MaxBytes: config.BatchMaxBytes}
	return &consumerGroupHandler{
		config:    config,
		processor: processor,
		logger:    logger,
		metrics:   metrics,
		buffers:   buffer.NewManager(limits),
	}
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (h *consumerGroupHandler) Setup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("consumer group session setup",
		"member_id", session.MemberID(),
		"generation_id", session.GenerationID(),
		"claims", session.Claims(),
	)

	if h.metrics != nil {
		h.metrics.IncRebalances(h.config.GroupID)
		for topic, partitions := range session.Claims() {
			h.metrics.SetPartitionsAssigned(topic, float64(len(partitions)))
		}
	}
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (h *consumerGroupHandler) Cleanup(session sarama.ConsumerGroupSession) error {
	h.logger.Info("consumer group session cleanup",
		"member_id", session.MemberID(),
	)
	return nil
}

// ConsumeClaim batches the messages of one partition into the processor.
func (h *consumerGroupHandler) ConsumeClaim(
	session sarama.ConsumerGroupSession,
	claim sarama.ConsumerGroupClaim,
) error {
	pid := event.PartitionID{Topic: claim.Topic(), Partition: claim.Partition()}
	buf := h.buffers.GetOrCreate(pid)
	// Undelivered records are dropped; the next owner reads them again.
	defer h.buffers.Remove(pid)

	h.logger.Info("started consuming partition",
		"partition", pid.String(),
		"initial_offset", claim.InitialOffset(),
	)

	ticker := time.NewTicker(h.config.BatchTimeout)
	defer ticker.Stop()

	var last *sarama.ConsumerMessage
	deliver := func() error {
		pending := buf.Stats()
		records := buf.Drain()
		start := time.Now()

		status, err := h.processor.Process(session.Context(), records)
		if err != nil {
			h.failed.Store(true)
			h.logger.Error("batch delivery failed, ending session",
				"partition", pid.String(),
				"records", len(records),
				"error", err)
			return fmt.Errorf("deliver batch for %s: %w", pid, err)
		}
		if len(records) == 0 {
			return nil
		}

		session.MarkMessage(last, "")
		if h.metrics != nil {
			h.metrics.ObserveBatchDuration(pid.Topic, time.Since(start).Seconds())
			h.metrics.IncOffsetMarks(pid.Topic, pid.Partition)
		}
		h.logger.Debug("batch delivered",
			"partition", pid.String(),
			"records", len(records),
			"bytes", pending.Bytes,
			"age", start.Sub(pending.Oldest),
			"last_offset", last.Offset,
			"status", status.String())
		return nil
	}

	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				return deliver()
			}

			record := toRecord(message, h.config.KeyHeader)
			if err := buf.Add(record); err != nil {
				if !errors.Is(err, apperrors.ErrBufferFull) {
					return err
				}
				if err := deliver(); err != nil {
					return err
				}
				if err := buf.Add(record); err != nil {
					return err
				}
			}
			last = message

			if h.metrics != nil {
				h.metrics.IncMessagesConsumed(message.Topic, message.Partition)
			}

			if buf.Full() {
				if err := deliver(); err != nil {
					return err
				}
			}

		case <-ticker.C:
			if err := deliver(); err != nil {
				return err
			}

		case <-session.Context().Done():
			h.logger.Info("session context done, stopping partition consumption",
				"partition", pid.String(),
			)
			return nil
		}
	}
}

// toRecord converts a Kafka message, reading the routing key from keyHeader.
func toRecord(message *sarama.ConsumerMessage, keyHeader string) event.Record {
	return event.NewRecord(keyHeader, message.Value, event.KafkaMetadata{
		Topic:     message.Topic,
		Partition: message.Partition,
		Offset:    message.Offset,
		Key:       message.Key,
		Headers:   extractHeaders(message.Headers),
		Timestamp: message.Timestamp,
	})
}

// extractHeaders extracts headers from Kafka message.
func extractHeaders(headers []*sarama.RecordHeader) map[string]string {
	result := make(map[string]string, len(headers))
	for _, header := range headers {
		if header == nil {
			continue
		}
		result[string(header.Key)] = string(header.Value)
	}
	return result
}

// offsetInitial converts the AutoOffsetReset config to Sarama's offset constant.
func offsetInitial(autoOffsetReset string) int64 {
	switch autoOffsetReset {
	case "earliest":
		return sarama.OffsetOldest
	case "latest":
		return sarama.OffsetNewest
	default:
		return sarama.OffsetNewest
	}
}
