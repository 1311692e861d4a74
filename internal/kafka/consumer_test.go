package kafka

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/jittakal/kafeventsink/pkg/event"
	"github.com/jittakal/kafeventsink/pkg/sink"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func newFakeSession(ctx context.Context) *fakeSession {
	return &fakeSession{ctx: ctx}
}

func (s *fakeSession) Claims() map[string][]int32 { return map[string][]int32{"logs": {0, 1}} }
func (s *fakeSession) MemberID() string { return "member-1" }
func (s *fakeSession) GenerationID() int32 { return 1 }
func (s *fakeSession) MarkOffset(string, int32, int64, string) {}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(string, int32, int64, string) {}
func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *fakeSession) markedOffsets() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...)
}

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func newFakeClaim(size int) *fakeClaim {
	return &fakeClaim{messages: make(chan *sarama.ConsumerMessage, size)}
}

func (c *fakeClaim) Topic() string { return "logs" }
func (c *fakeClaim) Partition() int32 { return 0 }
func (c *fakeClaim) InitialOffset() int64 { return 0 }
func (c *fakeClaim) HighWaterMarkOffset() int64 { return 0 }
func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

type recordingProcessor struct {
	mu      sync.Mutex
	batches [][]event.Record
	err     error
}

func (p *recordingProcessor) Process(_ context.Context, records []event.Record) (sink.Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, records)
	if p.err != nil {
		return sink.StatusBackoff, p.err
	}
	return sink.StatusReady, nil
}

// nonEmpty returns the batches that carried at least one record.
func (p *recordingProcessor) nonEmpty() [][]event.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out [][]event.Record
	for _, b := range p.batches {
		if len(b) > 0 {
			out = append(out, b)
		}
	}
	return out
}

type mockConsumerMetrics struct {
	mu        sync.Mutex
	consumed  int
	marks     int
	batches   int
	rebalance int
	assigned  map[string]float64
}

func (m *mockConsumerMetrics) IncMessagesConsumed(string, int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consumed++
}

func (m *mockConsumerMetrics) IncRebalances(string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebalance++
}

func (m *mockConsumerMetrics) SetPartitionsAssigned(topic string, count float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.assigned == nil {
		m.assigned = make(map[string]float64)
	}
	m.assigned[topic] = count
}

func (m *mockConsumerMetrics) IncOffsetMarks(string, int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marks++
}

func (m *mockConsumerMetrics) ObserveBatchDuration(string, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches++
}

func testConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		BootstrapServers: []string{"localhost:9092"},
		GroupID:          "sink",
		KeyHeader:        "file",
		BatchSize:        3,
		BatchTimeout:     time.Hour,
		RetryBackoff:     time.Millisecond,
	}
}

func message(offset int64, key, body string) *sarama.ConsumerMessage {
	return &sarama.ConsumerMessage{
		Topic:     "logs",
		Partition: 0,
		Offset:    offset,
		Value:     []byte(body),
		Headers: []*sarama.RecordHeader{
			{Key: []byte("file"), Value: []byte(key)},
		},
	}
}

func TestConsumerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConsumerConfig)
		wantErr bool
	}{
		{name: "valid", mutate: func(*ConsumerConfig) {}},
		{name: "no brokers", mutate: func(c *ConsumerConfig) { c.BootstrapServers = nil }, wantErr: true},
		{name: "no group", mutate: func(c *ConsumerConfig) { c.GroupID = "" }, wantErr: true},
		{name: "no key header", mutate: func(c *ConsumerConfig) { c.KeyHeader = "" }, wantErr: true},
		{name: "zero batch size", mutate: func(c *ConsumerConfig) { c.BatchSize = 0 }, wantErr: true},
		{name: "zero batch timeout", mutate: func(c *ConsumerConfig) { c.BatchTimeout = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConsumerConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewSaramaConsumer_InvalidConfig(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.GroupID = ""

	if _, err := NewSaramaConsumer(cfg, testLogger(), nil); err == nil {
		t.Fatal("NewSaramaConsumer() expected error for missing group")
	}
}

func TestConsumeClaim_DeliversFullBatch(t *testing.T) {
	processor := &recordingProcessor{}
	metrics := &mockConsumerMetrics{}
	handler := newConsumerGroupHandler(testConsumerConfig(), processor, testLogger(), metrics)

	session := newFakeSession(context.Background())
	claim := newFakeClaim(8)
	for i := int64(0); i < 4; i++ {
		claim.messages <- message(i, "app/out", "line")
	}
	close(claim.messages)

	if err := handler.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim() error = %v", err)
	}

	batches := processor.nonEmpty()
	if len(batches) != 2 {
		t.Fatalf("got %d non-empty batches, want 2", len(batches))
	}
	if len(batches[0]) != 3 || len(batches[1]) != 1 {
		t.Errorf("batch sizes = %d,%d, want 3,1", len(batches[0]), len(batches[1]))
	}

	marked := session.markedOffsets()
	if len(marked) != 2 || marked[0] != 2 || marked[1] != 3 {
		t.Errorf("marked offsets = %v, want [2 3]", marked)
	}
	if metrics.consumed != 4 {
		t.Errorf("consumed = %d, want 4", metrics.consumed)
	}
	if metrics.marks != 2 {
		t.Errorf("offset marks = %d, want 2", metrics.marks)
	}
	if handler.buffers.Len() != 0 {
		t.Errorf("buffers left = %d, want 0", handler.buffers.Len())
	}
}

func TestConsumeClaim_RecordsCarryRoutingKey(t *testing.T) {
	processor := &recordingProcessor{}
	handler := newConsumerGroupHandler(testConsumerConfig(), processor, testLogger(), nil)

	claim := newFakeClaim(2)
	claim.messages <- message(7, "nginx/access", "GET /")
	claim.messages <- &sarama.ConsumerMessage{Topic: "logs", Offset: 8, Value: []byte("orphan")}
	close(claim.messages)

	if err := handler.ConsumeClaim(newFakeSession(context.Background()), claim); err != nil {
		t.Fatalf("ConsumeClaim() error = %v", err)
	}

	batches := processor.nonEmpty()
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("batches = %v, want one batch of 2", batches)
	}
	first, second := batches[0][0], batches[0][1]
	if !first.HasKey || first.Key != "nginx/access" || string(first.Body) != "GET /" {
		t.Errorf("first record = %+v", first)
	}
	if second.HasKey {
		t.Errorf("second record HasKey = true, want false")
	}
}

func TestConsumeClaim_FailedBatchIsNotMarked(t *testing.T) {
	processor := &recordingProcessor{err: errors.New("disk full")}
	handler := newConsumerGroupHandler(testConsumerConfig(), processor, testLogger(), nil)

	session := newFakeSession(context.Background())
	claim := newFakeClaim(3)
	for i := int64(0); i < 3; i++ {
		claim.messages <- message(i, "a", "x")
	}

	err := handler.ConsumeClaim(session, claim)
	if err == nil {
		t.Fatal("ConsumeClaim() expected error")
	}
	if !errors.Is(err, processor.err) {
		t.Errorf("error = %v, want wrapped %v", err, processor.err)
	}
	if !handler.failed.Load() {
		t.Error("failed flag not set")
	}
	if marked := session.markedOffsets(); len(marked) != 0 {
		t.Errorf("marked offsets = %v, want none", marked)
	}
}

func TestConsumeClaim_ByteLimitSplitsBatch(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.BatchSize = 10
	// Only bodies count, 10 bytes each.
	cfg.BatchMaxBytes = 20

	processor := &recordingProcessor{}
	handler := newConsumerGroupHandler(cfg, processor, testLogger(), nil)

	session := newFakeSession(context.Background())
	claim := newFakeClaim(3)
	for i := int64(0); i < 3; i++ {
		claim.messages <- message(i, "k", "0123456789")
	}
	close(claim.messages)

	if err := handler.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim() error = %v", err)
	}

	batches := processor.nonEmpty()
	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Fatalf("batch sizes = %v, want [2 1]", batchSizes(batches))
	}
	marked := session.markedOffsets()
	if len(marked) != 2 || marked[0] != 1 || marked[1] != 2 {
		t.Errorf("marked offsets = %v, want [1 2]", marked)
	}
}

func TestConsumeClaim_TimeoutDeliversPartialBatch(t *testing.T) {
	cfg := testConsumerConfig()
	cfg.BatchTimeout = 10 * time.Millisecond

	processor := &recordingProcessor{}
	handler := newConsumerGroupHandler(cfg, processor, testLogger(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session := newFakeSession(ctx)
	claim := newFakeClaim(1)
	claim.messages <- message(41, "slow", "tick")

	done := make(chan error, 1)
	go func() { done <- handler.ConsumeClaim(session, claim) }()

	deadline := time.Now().Add(2 * time.Second)
	for len(processor.nonEmpty()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("partial batch was not delivered on timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("ConsumeClaim() error = %v", err)
	}

	marked := session.markedOffsets()
	if len(marked) != 1 || marked[0] != 41 {
		t.Errorf("marked offsets = %v, want [41]", marked)
	}
}

func TestConsumerGroupHandler_Setup(t *testing.T) {
	metrics := &mockConsumerMetrics{}
	handler := newConsumerGroupHandler(testConsumerConfig(), &recordingProcessor{}, testLogger(), metrics)

	session := newFakeSession(context.Background())
	if err := handler.Setup(session); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if err := handler.Cleanup(session); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}

	if metrics.rebalance != 1 {
		t.Errorf("rebalances = %d, want 1", metrics.rebalance)
	}
	if metrics.assigned["logs"] != 2 {
		t.Errorf("assigned[logs] = %v, want 2", metrics.assigned["logs"])
	}
}

func TestToRecord(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	msg := &sarama.ConsumerMessage{
		Topic:     "logs",
		Partition: 4,
		Offset:    99,
		Key:       []byte("k1"),
		Value:     []byte("payload"),
		Timestamp: ts,
		Headers: []*sarama.RecordHeader{
			{Key: []byte("file"), Value: []byte("svc/app")},
			nil,
			{Key: []byte("trace"), Value: []byte("abc")},
		},
	}

	rec := toRecord(msg, "file")

	if !rec.HasKey || rec.Key != "svc/app" {
		t.Errorf("key = %q (has %v), want svc/app", rec.Key, rec.HasKey)
	}
	if string(rec.Body) != "payload" {
		t.Errorf("body = %q, want payload", rec.Body)
	}
	if rec.Partition() != (event.PartitionID{Topic: "logs", Partition: 4}) {
		t.Errorf("partition = %v", rec.Partition())
	}
	if rec.Kafka.Offset != 99 || string(rec.Kafka.Key) != "k1" || !rec.Kafka.Timestamp.Equal(ts) {
		t.Errorf("metadata = %+v", rec.Kafka)
	}
	if len(rec.Kafka.Headers) != 2 || rec.Kafka.Headers["trace"] != "abc" {
		t.Errorf("headers = %v", rec.Kafka.Headers)
	}
}

func TestOffsetInitial(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{in: "earliest", want: sarama.OffsetOldest},
		{in: "latest", want: sarama.OffsetNewest},
		{in: "", want: sarama.OffsetNewest},
		{in: "bogus", want: sarama.OffsetNewest},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := offsetInitial(tt.in); got != tt.want {
				t.Errorf("offsetInitial(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func batchSizes(batches [][]event.Record) []int {
	sizes := make([]int, len(batches))
	for i, b := range batches {
		sizes[i] = len(b)
	}
	return sizes
}
