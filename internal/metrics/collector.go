package metrics

import (
	"context"
	"time"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/status"
)

// Publisher accepts metric records for delivery.
type Publisher interface {
	Publish(rec models.MetricRecord)
}

// Collector periodically snapshots the aggregator into metric records
// and hands them to the publisher. It never blocks on the broker; the
// publisher buffers.
type Collector struct {
	agg       *status.Aggregator
	publisher Publisher
	interval  time.Duration
	logger    *logging.Logger
}

func NewCollector(agg *status.Aggregator, publisher Publisher, interval time.Duration, logger *logging.Logger) *Collector {
	return &Collector{
		agg:       agg,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
	}
}

// Run emits one snapshot per interval until ctx is cancelled.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collect(time.Now().UTC())
		}
	}
}

func (c *Collector) collect(now time.Time) {
	snap := c.agg.Snapshot()
	for name, st := range snap {
		up := 0.0
		if st.State == models.StateHealthy {
			up = 1.0
		}
		c.publisher.Publish(models.MetricRecord{
			Name:        "target_up",
			Value:       up,
			Labels:      map[string]string{"target": name, "state": string(st.State)},
			CollectedAt: now,
		})
		if st.LastCheckedAt.IsZero() {
			continue
		}
		c.publisher.Publish(models.MetricRecord{
			Name:        "probe_latency_ms",
			Value:       st.LastLatencyMS,
			Labels:      map[string]string{"target": name},
			CollectedAt: now,
		})
	}

	ok := 0.0
	if c.agg.AllCriticalOK() {
		ok = 1.0
	}
	c.publisher.Publish(models.MetricRecord{
		Name:        "all_critical_ok",
		Value:       ok,
		CollectedAt: now,
	})
	c.logger.Debugf("collected %d targets", len(snap))
}
