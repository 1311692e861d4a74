package buffer_test

import (
	"fmt"

	"github.com/jittakal/kafeventsink/internal/buffer"
	pkgbuffer "github.com/jittakal/kafeventsink/pkg/buffer"
	"github.com/jittakal/kafeventsink/pkg/event"
)

func ExampleBatch() {
	pid := event.PartitionID{Topic: "logs", Partition: 0}
	b := buffer.NewBatch(pid, pkgbuffer.Limits{MaxRecords: 3})

	for i := 0; i < 4; i++ {
		record := event.NewRecord("file", []byte(fmt.Sprintf("line %d", i)), event.KafkaMetadata{
			Topic:   "logs",
			Offset:  int64(i),
			Headers: map[string]string{"file": "app/access"},
		})
		if err := b.Add(record); err != nil {
			fmt.Println("batch full at offset", i)
			break
		}
	}

	records := b.Drain()
	fmt.Printf("drained %d records, last offset %d\n", len(records), records[len(records)-1].Kafka.Offset)
	fmt.Println("empty after drain:", b.Len() == 0)

	// Output:
	// batch full at offset 3
	// drained 3 records, last offset 2
	// empty after drain: true
}

func ExampleManager() {
	m := buffer.NewManager(pkgbuffer.Limits{MaxRecords: 100})

	p0 := event.PartitionID{Topic: "logs", Partition: 0}
	p1 := event.PartitionID{Topic: "logs", Partition: 1}

	_ = m.GetOrCreate(p0).Add(event.Record{Body: []byte("a")})
	_ = m.GetOrCreate(p1).Add(event.Record{Body: []byte("b")})
	_ = m.GetOrCreate(p0).Add(event.Record{Body: []byte("c")})

	fmt.Printf("%s: %d records\n", p0, m.GetOrCreate(p0).Len())
	fmt.Printf("%s: %d records\n", p1, m.GetOrCreate(p1).Len())

	// Output:
	// logs-0: 2 records
	// logs-1: 1 records
}
