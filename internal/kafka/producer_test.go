package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

type stubWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	failures int
}

func (w *stubWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failures > 0 {
		w.failures--
		return assert.AnError
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *stubWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.messages)
}

func testRecord(name string, at time.Time) models.MetricRecord {
	return models.MetricRecord{
		Name:        name,
		Value:       1,
		Labels:      map[string]string{"target": "vpn"},
		CollectedAt: at,
	}
}

func TestProducer_PublishAndRun(t *testing.T) {
	w := &stubWriter{}
	p := &Producer{
		writer: w,
		logger: logging.NewNop(),
		buffer: make(chan models.MetricRecord, 8),
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	rec := testRecord("target_up", time.Now().UTC())
	p.Publish(rec)

	require.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	msg := w.messages[0]
	assert.Equal(t, []byte(rec.IdempotencyKey()), msg.Key)

	var decoded models.MetricRecord
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, rec.Name, decoded.Name)

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.NotEmpty(t, headers["message_id"])
	assert.Equal(t, "monitoring-service", headers["source"])
}

func TestProducer_BufferOverflowDropsOldest(t *testing.T) {
	p := &Producer{
		writer: &stubWriter{},
		logger: logging.NewNop(),
		buffer: make(chan models.MetricRecord, 2),
	}
	now := time.Now().UTC()

	p.Publish(testRecord("m1", now))
	p.Publish(testRecord("m2", now))
	p.Publish(testRecord("m3", now))

	assert.Equal(t, int64(1), p.Dropped())
	assert.Equal(t, "m2", (<-p.buffer).Name, "oldest record was dropped")
	assert.Equal(t, "m3", (<-p.buffer).Name)
}

func TestProducer_RetriesUntilBrokerAccepts(t *testing.T) {
	w := &stubWriter{failures: 2}
	p := &Producer{
		writer: w,
		logger: logging.NewNop(),
		buffer: make(chan models.MetricRecord, 1),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	p.Publish(testRecord("target_up", time.Now().UTC()))

	require.Eventually(t, func() bool { return w.count() == 1 }, 4*time.Second, 10*time.Millisecond)
	cancel()
	<-done
}
