// Package sink delivers record batches into routed output files.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	apperrors "github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/internal/observability"
	"github.com/jittakal/kafeventsink/internal/writer"
	"github.com/jittakal/kafeventsink/pkg/event"
	pkgsink "github.com/jittakal/kafeventsink/pkg/sink"
)

// Ensure implementation satisfies interface at compile time.
var (
	_ pkgsink.Deliverer      = (*Sink)(nil)
	_ pkgsink.BatchProcessor = (*Sink)(nil)
)

// DefaultBatchSize is the number of records a full batch holds.
const DefaultBatchSize = 1000

// Validator decides whether a record can be routed.
type Validator interface {
	Validate(r event.Record) error
}

// MetricsCollector receives transaction and drain counts.
type MetricsCollector interface {
	IncTransactions(status string)
	AddEventsDrained(result string, n int)
	AddBytesDrained(n int)
}

type noopMetrics struct{}

func (noopMetrics) IncTransactions(string) {}
func (noopMetrics) AddEventsDrained(string, int) {}
func (noopMetrics) AddBytesDrained(int) {}

// Option customizes a Sink.
type Option func(*Sink)

// WithValidator skips records the validator rejects.
func WithValidator(v Validator) Option {
	return func(s *Sink) {
		s.validator = v
	}
}

// WithRejecter hands skipped records to r, typically a dead letter queue.
func WithRejecter(r pkgsink.Rejecter) Option {
	return func(s *Sink) {
		s.rejecter = r
	}
}

// WithBatchSize sets the size of a full batch.
func WithBatchSize(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// Sink writes records to the files selected by their routing keys.
//
// A batch is the unit of success: the first delivery failure fails the whole batch
// and the caller redelivers it. Records written before the failure stay in their
// files, so a redelivered batch can duplicate them.
type Sink struct {
	cache     *writer.Cache
	validator Validator
	rejecter  pkgsink.Rejecter
	batchSize int
	logger    *slog.Logger
	metrics   MetricsCollector

	stopOnce sync.Once
	stopErr  error
}

// New creates a sink on top of cache.
func New(cache *writer.Cache, logger *slog.Logger, metrics MetricsCollector, opts ...Option) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}

	s := &Sink{
		cache:     cache,
		batchSize: DefaultBatchSize,
		logger:    logger,
		metrics:   metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver writes body to the file for key.
func (s *Sink) Deliver(key string, body []byte) error {
	w, err := s.cache.Get(key)
	if err != nil {
		return err
	}

	err = w.Write(body)
	if errors.Is(err, apperrors.ErrWriterClosed) {
		// The sweep closed this writer after Get returned it.
		if w, err = s.cache.Get(key); err != nil {
			return err
		}
		err = w.Write(body)
	}
	return err
}

// Process delivers one batch. It reports StatusBackoff when the batch was empty or
// short, meaning the source is drained, and StatusReady otherwise.
func (s *Sink) Process(ctx context.Context, records []event.Record) (pkgsink.Status, error) {
	if len(records) == 0 {
		s.metrics.IncTransactions(observability.StatusEmpty)
		return pkgsink.StatusBackoff, nil
	}

	var attempted, delivered, bytes int
	defer func() {
		s.metrics.AddEventsDrained(observability.DrainAttempt, attempted)
		s.metrics.AddEventsDrained(observability.DrainSuccess, delivered)
		s.metrics.AddBytesDrained(bytes)
	}()

	for _, r := range records {
		if err := ctx.Err(); err != nil {
			s.metrics.IncTransactions(observability.StatusFailed)
			return pkgsink.StatusBackoff, err
		}
		attempted++

		if reason, skip := s.check(r); skip {
			if err := s.reject(ctx, r, reason); err != nil {
				s.metrics.IncTransactions(observability.StatusFailed)
				return pkgsink.StatusBackoff, s.deliveryError(r, err)
			}
			continue
		}

		if err := s.Deliver(r.Key, r.Body); err != nil {
			s.metrics.IncTransactions(observability.StatusFailed)
			s.logger.Error("failed to deliver record, failing batch",
				"key", r.Key,
				"partition", r.Partition().String(),
				"offset", r.Kafka.Offset,
				"error", err)
			return pkgsink.StatusBackoff, s.deliveryError(r, err)
		}
		delivered++
		bytes += len(r.Body)
	}

	s.metrics.IncTransactions(observability.StatusSucceeded)
	if len(records) < s.batchSize {
		return pkgsink.StatusBackoff, nil
	}
	return pkgsink.StatusReady, nil
}

// check reports whether r must be skipped and why.
func (s *Sink) check(r event.Record) (string, bool) {
	if s.validator != nil {
		if err := s.validator.Validate(r); err != nil {
			return err.Error(), true
		}
		return "", false
	}
	if !r.HasKey {
		return apperrors.ErrMissingKey.Error(), true
	}
	return "", false
}

func (s *Sink) reject(ctx context.Context, r event.Record, reason string) error {
	s.logger.Debug("skipping record",
		"partition", r.Partition().String(),
		"offset", r.Kafka.Offset,
		"reason", reason)

	if s.rejecter == nil {
		return nil
	}
	return s.rejecter.Reject(ctx, r, reason)
}

func (s *Sink) deliveryError(r event.Record, err error) error {
	return &apperrors.DeliveryError{
		PartitionID: r.Partition(),
		Offset:      r.Kafka.Offset,
		Key:         r.Key,
		Err:         err,
	}
}

// Ready reports whether the sink still accepts records.
func (s *Sink) Ready() bool {
	return !s.cache.Closed()
}

// OpenFiles returns the number of open output files.
func (s *Sink) OpenFiles() int {
	return s.cache.Len()
}

// Stop closes and publishes every open file. Only the first call does any work.
func (s *Sink) Stop() error {
	s.stopOnce.Do(func() {
		s.logger.Info("sink stopping", "open_files", s.cache.Len())
		s.stopErr = s.cache.Shutdown()
		s.logger.Info("sink stopped")
	})
	return s.stopErr
}
