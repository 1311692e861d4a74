// Package event defines the record types shared by the transport and the sink.
//
// # Records
//
// A Record carries one body and the routing key read from a message header:
//
//	meta := event.KafkaMetadata{
//	    Topic:     "access-logs",
//	    Partition: 3,
//	    Offset:    12345,
//	    Headers:   map[string]string{"file": "nginx/access"},
//	}
//	rec := event.NewRecord("file", body, meta)
//	// rec.Key == "nginx/access", rec.HasKey == true
//
// A message without the header yields HasKey == false. The sink skips such records
// instead of failing the batch.
//
// # Partition Identification
//
// PartitionID uniquely identifies a Kafka topic partition:
//
//	pid := rec.Partition()
//	key := pid.String() // "access-logs-3"
package event
