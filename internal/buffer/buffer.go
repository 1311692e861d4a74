package buffer

import (
	"fmt"
	"sync"
	"time"

	"github.com/jittakal/kafeventsink/internal/errors"
	"github.com/jittakal/kafeventsink/pkg/buffer"
	"github.com/jittakal/kafeventsink/pkg/event"
)

var (
	_ buffer.Buffer  = (*Batch)(nil)
	_ buffer.Manager = (*Manager)(nil)
)

// Batch holds the undelivered records of a single partition.
type Batch struct {
	partition event.PartitionID
	limits    buffer.Limits
	now       func() time.Time

	mu      sync.Mutex
	records []event.Record
	bytes   int64
	oldest  time.Time
}

// NewBatch returns an empty batch for partition. A non-positive MaxRecords is treated as 1.
func NewBatch(partition event.PartitionID, limits buffer.Limits) *Batch {
	if limits.MaxRecords <= 0 {
		limits.MaxRecords = 1
	}
	return &Batch{
		partition: partition,
		limits:    limits,
		now:       time.Now,
		records:   make([]event.Record, 0, limits.MaxRecords),
	}
}

// Partition returns the partition the batch belongs to.
func (b *Batch) Partition() event.PartitionID {
	return b.partition
}

// Add appends record. The byte limit never rejects the first record of a batch,
// so one oversized message cannot stall its partition.
func (b *Batch) Add(record event.Record) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) >= b.limits.MaxRecords {
		return fmt.Errorf("%w: %s holds %d records", errors.ErrBufferFull, b.partition, len(b.records))
	}
	size := int64(len(record.Body))
	if b.limits.MaxBytes > 0 && len(b.records) > 0 && b.bytes+size > b.limits.MaxBytes {
		return fmt.Errorf("%w: %s would exceed %d bytes", errors.ErrBufferFull, b.partition, b.limits.MaxBytes)
	}

	if len(b.records) == 0 {
		b.oldest = b.now()
	}
	b.records = append(b.records, record)
	b.bytes += size
	return nil
}

// Drain hands the pending records to the caller and starts a new batch.
func (b *Batch) Drain() []event.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	records := b.records
	b.records = make([]event.Record, 0, b.limits.MaxRecords)
	b.bytes = 0
	b.oldest = time.Time{}
	return records
}

func (b *Batch) Stats() buffer.Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return buffer.Stats{Records: len(b.records), Bytes: b.bytes, Oldest: b.oldest}
}

func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

func (b *Batch) Full() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records) >= b.limits.MaxRecords
}

// Manager keeps the batches of the partitions claimed by this consumer.
type Manager struct {
	limits buffer.Limits

	mu      sync.RWMutex
	batches map[event.PartitionID]*Batch
}

func NewManager(limits buffer.Limits) *Manager {
	return &Manager{
		limits:  limits,
		batches: make(map[event.PartitionID]*Batch),
	}
}

// GetOrCreate returns the batch of partitionID, creating it on first use.
func (m *Manager) GetOrCreate(partitionID event.PartitionID) buffer.Buffer {
	m.mu.RLock()
	b, ok := m.batches[partitionID]
	m.mu.RUnlock()
	if ok {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.batches[partitionID]; ok {
		return b
	}
	b = NewBatch(partitionID, m.limits)
	m.batches[partitionID] = b
	return b
}

// Remove drops the batch of partitionID with any records it still holds.
func (m *Manager) Remove(partitionID event.PartitionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.batches, partitionID)
}

// Len returns the number of partitions with a batch.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.batches)
}
