// Package buffer defines the batching contract between the Kafka source and the sink.
package buffer

import (
	"time"

	"github.com/jittakal/kafeventsink/pkg/event"
)

// Limits bounds a batch. A zero MaxBytes leaves the byte size unbounded.
type Limits struct {
	MaxRecords int
	MaxBytes   int64
}

// Stats is a snapshot of a pending batch.
type Stats struct {
	Records int
	// Bytes counts record bodies only, which is what reaches the output files.
	Bytes  int64
	Oldest time.Time
}

// Buffer accumulates the records of one partition until they are handed to the sink.
// Implementations must be safe for concurrent use.
type Buffer interface {
	// Add appends a record, or fails with errors.ErrBufferFull when a limit would be crossed.
	Add(record event.Record) error

	// Drain returns the pending records in offset order and empties the buffer.
	Drain() []event.Record

	Stats() Stats
	Len() int

	// Full reports whether the record limit has been reached.
	Full() bool
}

// Manager owns one Buffer per claimed partition.
type Manager interface {
	GetOrCreate(partitionID event.PartitionID) Buffer

	// Remove discards the buffer of a partition that is no longer claimed.
	Remove(partitionID event.PartitionID)

	Len() int
}
