// Package buffer batches consumed records per Kafka partition.
//
// The Kafka consumer adds every message of a claimed partition to its Batch and
// hands the batch to the sink once it is full or the batch timeout fires:
//
//	b := buffer.NewBatch(pid, buffer.Limits{MaxRecords: 1000, MaxBytes: 1 << 20})
//
//	if err := b.Add(record); errors.Is(err, errors.ErrBufferFull) {
//	    deliver(b.Drain())
//	    _ = b.Add(record)
//	}
//
// Only record bodies count against MaxBytes. The first record of a batch is always
// accepted.
//
// Manager keeps one Batch per claimed partition. Removing a revoked partition drops
// its undelivered records; Kafka redelivers them to the next owner from the last
// marked offset.
package buffer
