package status

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"monitoring-service/internal/models"
)

type stubSource map[string]models.TargetStatus

func (s stubSource) Snapshot() map[string]models.TargetStatus {
	out := make(map[string]models.TargetStatus, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func TestAggregator_AllCriticalOK(t *testing.T) {
	tests := []struct {
		name     string
		statuses stubSource
		critical []string
		want     bool
	}{
		{
			name: "all critical healthy",
			statuses: stubSource{
				"vpn": {State: models.StateHealthy},
				"nas": {State: models.StateHealthy},
				"ui":  {State: models.StateFailing},
			},
			critical: []string{"vpn", "nas"},
			want:     true,
		},
		{
			name: "one critical failing",
			statuses: stubSource{
				"vpn": {State: models.StateHealthy},
				"nas": {State: models.StateFailing},
			},
			critical: []string{"vpn", "nas"},
			want:     false,
		},
		{
			name: "critical still unknown",
			statuses: stubSource{
				"vpn": {State: models.StateUnknown},
			},
			critical: []string{"vpn"},
			want:     false,
		},
		{
			name: "degraded counts as not ok",
			statuses: stubSource{
				"vpn": {State: models.StateDegraded},
			},
			critical: []string{"vpn"},
			want:     false,
		},
		{
			name:     "no critical targets",
			statuses: stubSource{"ui": {State: models.StateFailing}},
			critical: nil,
			want:     true,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			agg := New(tc.statuses, tc.critical)
			assert.Equal(t, tc.want, agg.AllCriticalOK())
		})
	}
}

func TestAggregator_SnapshotPassesThrough(t *testing.T) {
	src := stubSource{"vpn": {Target: "vpn", State: models.StateHealthy}}
	agg := New(src, nil)

	snap := agg.Snapshot()
	assert.Equal(t, models.StateHealthy, snap["vpn"].State)
}
