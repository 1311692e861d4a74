// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// Sentinel errors for common conditions.
var (
	ErrWriterClosed   = errors.New("file writer is closed")
	ErrCacheClosed    = errors.New("writer cache is shut down")
	ErrInvalidKey     = errors.New("invalid routing key")
	ErrMissingKey     = errors.New("routing key header is missing")
	ErrRecordTooLarge = errors.New("record body too large")
	ErrBufferFull     = errors.New("batch buffer is full")
	ErrConsumerClosed = errors.New("consumer is closed")
	ErrConnectionLost = errors.New("connection lost")
)

// StorageError represents a filesystem or upload failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	switch e.Operation {
	case "open", "write", "flush", "upload":
		return true
	default:
		return false
	}
}

// ValidationError represents a record the sink refuses to route.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: field=%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DeliveryError represents a record that could not be written, failing its batch.
type DeliveryError struct {
	PartitionID event.PartitionID
	Offset      int64
	Key         string
	Err         error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("delivery error: partition=%s offset=%d key=%q: %v",
		e.PartitionID, e.Offset, e.Key, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether redelivering the batch may succeed.
func (e *DeliveryError) IsRetryable() bool {
	return IsRetryable(e.Err)
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	// A writer closed by the idle sweep is replaced on the next lookup.
	if errors.Is(err, ErrWriterClosed) || errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}
