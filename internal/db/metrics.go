package db

import (
	"context"
	"encoding/json"
	"fmt"

	"monitoring-service/internal/models"
)

// InsertMetricRecord persists one metric sample. The unique index on
// idempotency_key makes the insert a no-op for a redelivered record,
// so the sink stays correct even if the in-memory dedup cache was
// restarted. Retention is handled by the sink side (a cron dropping
// rows older than the retention window on collected_at).
func (d *DB) InsertMetricRecord(ctx context.Context, rec models.MetricRecord) error {
	labels, err := json.Marshal(rec.Labels)
	if err != nil {
		return fmt.Errorf("failed to encode labels: %w", err)
	}

	query := `
        INSERT INTO metric_records (idempotency_key, name, value, labels, collected_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (idempotency_key) DO NOTHING`
	_, err = d.Pool.Exec(ctx, query,
		rec.IdempotencyKey(), rec.Name, rec.Value, labels, rec.CollectedAt)
	if err != nil {
		return fmt.Errorf("failed to insert metric record: %w", err)
	}
	return nil
}

// GetMetricRecords fetches recent samples for one metric name, newest first.
func (d *DB) GetMetricRecords(ctx context.Context, name string, limit int) ([]models.MetricRecord, error) {
	query := `
        SELECT name, value, labels, collected_at
        FROM metric_records
        WHERE name = $1
        ORDER BY collected_at DESC
        LIMIT $2`
	rows, err := d.Pool.Query(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get metric records: %w", err)
	}
	defer rows.Close()

	var list []models.MetricRecord
	for rows.Next() {
		var rec models.MetricRecord
		var labels []byte
		if err := rows.Scan(&rec.Name, &rec.Value, &labels, &rec.CollectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan metric record: %w", err)
		}
		if len(labels) > 0 {
			if err := json.Unmarshal(labels, &rec.Labels); err != nil {
				return nil, fmt.Errorf("failed to decode labels: %w", err)
			}
		}
		list = append(list, rec)
	}
	return list, rows.Err()
}
