// Package consumer defines interfaces for the Kafka side of the sink.
package consumer

import (
	"context"

	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/sink"
)

// Consumer reads record batches from Kafka topics and hands them to a processor.
type Consumer interface {
	// Run consumes until ctx is cancelled or a fatal consumer error occurs.
	Run(ctx context.Context, topics []string, processor sink.BatchProcessor) error

	// Close closes the consumer and releases resources.
	Close() error
}

// DLQPublisher publishes unroutable records to a dead letter queue.
type DLQPublisher interface {
	sink.Rejecter

	// Publish sends a record to the DLQ with a failure reason.
	Publish(ctx context.Context, record event.Record, reason string) error

	// Close closes the publisher and releases resources.
	Close() error
}
