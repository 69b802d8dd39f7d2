package kafka

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

// messageWriter is the slice of kafka.Writer the producer uses,
// extracted so tests can substitute a stub.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Producer publishes metric records with confirmed delivery. Records
// are buffered in a bounded channel; when the broker is unreachable
// the flush loop backs off and the oldest records are dropped once the
// buffer fills, so the collecting side never blocks.
type Producer struct {
	writer  messageWriter
	closer  func() error
	logger  *logging.Logger
	buffer  chan models.MetricRecord
	dropped atomic.Int64
}

// NewProducer builds a Producer for the metrics topic. The writer
// requires acks from all replicas, so a successful write means the
// broker has the message.
func NewProducer(brokers []string, topic string, bufferSize int, logger *logging.Logger) *Producer {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &Producer{
		writer: w,
		closer: w.Close,
		logger: logger,
		buffer: make(chan models.MetricRecord, bufferSize),
	}
}

// Publish enqueues a record without blocking. When the buffer is full
// the oldest buffered record is dropped and counted.
func (p *Producer) Publish(rec models.MetricRecord) {
	for {
		select {
		case p.buffer <- rec:
			return
		default:
		}
		select {
		case old := <-p.buffer:
			p.dropped.Add(1)
			p.logger.Warnf("producer buffer full, dropped metric %s", old.IdempotencyKey())
		default:
		}
	}
}

// Dropped reports how many records were discarded due to buffer overflow.
func (p *Producer) Dropped() int64 {
	return p.dropped.Load()
}

// Run drains the buffer until ctx is cancelled. A failed publish is
// retried with exponential backoff; the record is not given up on.
func (p *Producer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case rec := <-p.buffer:
			p.send(ctx, rec)
		}
	}
}

func (p *Producer) send(ctx context.Context, rec models.MetricRecord) {
	payload, err := json.Marshal(rec)
	if err != nil {
		p.logger.Errorf("failed to encode metric record: %v", err)
		return
	}

	msg := kafka.Message{
		Key:   []byte(rec.IdempotencyKey()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "message_id", Value: []byte(uuid.NewString())},
			{Key: "source", Value: []byte("monitoring-service")},
		},
	}

	backoff := time.Second
	for {
		err := p.writer.WriteMessages(ctx, msg)
		if err == nil {
			p.logger.Debugf("published metric %s", rec.Name)
			return
		}
		if ctx.Err() != nil {
			return
		}
		p.logger.Errorf("publish failed, retrying in %v: %v", backoff, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// Close releases the underlying writer.
func (p *Producer) Close() error {
	if p.closer != nil {
		return p.closer()
	}
	return nil
}
