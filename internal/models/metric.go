package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MetricRecord is one collected sample. Immutable once created.
// Consumers must tolerate unknown future fields, so decoding uses
// plain encoding/json with no strictness.
type MetricRecord struct {
	Name        string            `json:"name"`
	Value       float64           `json:"value"`
	Labels      map[string]string `json:"labels,omitempty"`
	CollectedAt time.Time         `json:"collected_at"`
}

// IdempotencyKey derives a deterministic identity for this record.
// Identical across producer retries of the same logical record:
// the key depends only on name, label set, and collection timestamp.
func (m MetricRecord) IdempotencyKey() string {
	keys := make([]string, 0, len(m.Labels))
	for k := range m.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(m.Name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, m.Labels[k])
	}
	b.WriteByte('}')
	fmt.Fprintf(&b, "@%d", m.CollectedAt.UnixNano())
	return b.String()
}
