package event

import (
	"fmt"
	"time"
)

// KafkaMetadata contains Kafka-specific metadata for a record.
type KafkaMetadata struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Headers   map[string]string
	Timestamp time.Time
}

// PartitionID uniquely identifies a Kafka partition.
type PartitionID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the partition ID in the format "topic-partition".
func (p PartitionID) String() string {
	return fmt.Sprintf("%s-%d", p.Topic, p.Partition)
}

// Record is a single body routed to an output file by Key.
type Record struct {
	// Key is the routing key. It is only meaningful when HasKey is true.
	Key    string
	HasKey bool
	Body   []byte
	Kafka  KafkaMetadata
}

// NewRecord builds a record whose routing key is read from the named header.
func NewRecord(keyHeader string, body []byte, meta KafkaMetadata) Record {
	key, ok := meta.Headers[keyHeader]
	return Record{
		Key:    key,
		HasKey: ok,
		Body:   body,
		Kafka:  meta,
	}
}

// Partition returns the partition the record was read from.
func (r Record) Partition() PartitionID {
	return PartitionID{Topic: r.Kafka.Topic, Partition: r.Kafka.Partition}
}

// Size returns the body length in bytes.
func (r Record) Size() int {
	return len(r.Body)
}
