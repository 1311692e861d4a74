// Package sink defines the narrow interface between the transport and the file sink.
package sink

import (
	"context"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// Status tells the transport whether to poll again immediately.
type Status int

const (
	// StatusReady means the batch was full and more records are likely waiting.
	StatusReady Status = iota
	// StatusBackoff means the source was drained.
	StatusBackoff
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Deliverer writes a single record body to the file selected by key.
type Deliverer interface {
	Deliver(key string, body []byte) error
}

// BatchProcessor delivers a batch of records as one unit.
// A non-nil error means the whole batch must be treated as failed.
type BatchProcessor interface {
	Process(ctx context.Context, records []event.Record) (Status, error)
}

// Rejecter receives records the sink refuses to route.
type Rejecter interface {
	Reject(ctx context.Context, record event.Record, reason string) error
}
