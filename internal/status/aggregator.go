package status

import "monitoring-service/internal/models"

// Source is the read side of the live status map.
type Source interface {
	Snapshot() map[string]models.TargetStatus
}

// Aggregator is a read-only consolidated view over the scheduler's
// status map. It never blocks on an in-flight probe.
type Aggregator struct {
	source   Source
	critical []string
}

func New(source Source, critical []string) *Aggregator {
	return &Aggregator{source: source, critical: critical}
}

// Snapshot returns the full per-target status map.
func (a *Aggregator) Snapshot() map[string]models.TargetStatus {
	return a.source.Snapshot()
}

// AllCriticalOK reports whether every critical target is healthy.
// An unknown or degraded critical target counts as not ok.
func (a *Aggregator) AllCriticalOK() bool {
	snap := a.source.Snapshot()
	for _, name := range a.critical {
		if snap[name].State != models.StateHealthy {
			return false
		}
	}
	return true
}
