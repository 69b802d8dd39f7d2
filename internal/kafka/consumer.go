package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"monitoring-service/internal/dedup"
	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/utils"
)

// Sink receives deduplicated metric records.
type Sink interface {
	InsertMetricRecord(ctx context.Context, rec models.MetricRecord) error
}

// messageReader is the slice of kafka.Reader the consumer uses.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ConsumerConfig holds the storage-side consumer settings.
type ConsumerConfig struct {
	Brokers         []string
	Topic           string
	GroupID         string
	DeadLetterTopic string
	MaxRetries      int
	RetryDelay      time.Duration
	DedupWindow     time.Duration
}

// Consumer reads the storage queue, deduplicates redelivered records,
// and writes them to the sink. A message is committed only after the
// sink write succeeded or the message was routed to the dead-letter
// topic; it is never silently dropped.
type Consumer struct {
	reader messageReader
	dead   messageWriter
	closer func() error
	sink   Sink
	cache  *dedup.Cache
	logger *logging.Logger
	cfg    ConsumerConfig
}

// NewConsumer builds the storage-group consumer. The scrape side is an
// independent consumer group on the same topic; the broker fans the
// single published message out to both.
func NewConsumer(cfg ConsumerConfig, sink Sink, logger *logging.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers: cfg.Brokers,
		Topic:   cfg.Topic,
		GroupID: cfg.GroupID,
	})
	dead := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.DeadLetterTopic,
		RequiredAcks: kafka.RequireAll,
	}
	return &Consumer{
		reader: r,
		dead:   dead,
		closer: func() error {
			derr := dead.Close()
			if err := r.Close(); err != nil {
				return err
			}
			return derr
		},
		sink:   sink,
		cache:  dedup.New(cfg.DedupWindow),
		logger: logger,
		cfg:    cfg,
	}
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Infof("consumer started on topic %s (group %s)", c.cfg.Topic, c.cfg.GroupID)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Errorf("fetch failed: %v", err)
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return
			}
			continue
		}

		// handleMessage only fails when the dead-letter publish itself
		// failed; retry until it goes through so the offset is never
		// committed past an unpersisted record.
		for {
			err := c.handleMessage(ctx, msg)
			if err == nil {
				break
			}
			c.logger.Errorf("message at offset %d not handled: %v", msg.Offset, err)
			select {
			case <-time.After(c.cfg.RetryDelay):
			case <-ctx.Done():
				return
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Errorf("commit failed: %v", err)
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg kafka.Message) error {
	var rec models.MetricRecord
	if err := json.Unmarshal(msg.Value, &rec); err != nil {
		c.logger.Errorf("undecodable message at offset %d: %v", msg.Offset, err)
		return c.deadLetter(ctx, msg, "decode_error")
	}

	key := rec.IdempotencyKey()
	if c.cache.Contains(key, time.Now()) {
		c.logger.Debugf("duplicate metric %s skipped", key)
		return nil
	}

	err := utils.Retry(ctx, c.logger, c.cfg.MaxRetries, c.cfg.RetryDelay, func() error {
		return c.sink.InsertMetricRecord(ctx, rec)
	})
	if err != nil {
		c.logger.Errorf("sink write exhausted retries for %s: %v", key, err)
		return c.deadLetter(ctx, msg, "sink_error")
	}
	c.cache.Add(key, time.Now())
	return nil
}

func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, reason string) error {
	out := kafka.Message{
		Key:   msg.Key,
		Value: msg.Value,
		Headers: append(msg.Headers, kafka.Header{
			Key: "dead_letter_reason", Value: []byte(reason),
		}),
	}
	if err := c.dead.WriteMessages(ctx, out); err != nil {
		return fmt.Errorf("dead-letter publish failed: %w", err)
	}
	c.logger.Warnf("message at offset %d routed to dead-letter (%s)", msg.Offset, reason)
	return nil
}

// Close releases the reader and dead-letter writer.
func (c *Consumer) Close() error {
	if c.closer != nil {
		return c.closer()
	}
	return nil
}
