package registry

import (
	"fmt"

	"monitoring-service/internal/models"
)

// Registry holds the validated, immutable set of monitored targets.
// A configuration reload builds a new Registry; an existing one is
// never mutated in place.
type Registry struct {
	targets []models.Target
	byName  map[string]models.Target
}

// New validates the target list and builds a Registry.
// Duplicate names are rejected here, never at poll time.
func New(targets []models.Target) (*Registry, error) {
	r := &Registry{
		targets: make([]models.Target, 0, len(targets)),
		byName:  make(map[string]models.Target, len(targets)),
	}
	for _, t := range targets {
		if _, ok := r.byName[t.Name]; ok {
			return nil, fmt.Errorf("duplicate target name %q", t.Name)
		}
		if t.Interval <= 0 || t.Timeout <= 0 {
			return nil, fmt.Errorf("target %q has non-positive interval or timeout", t.Name)
		}
		r.byName[t.Name] = t
		r.targets = append(r.targets, t)
	}
	return r, nil
}

// Targets returns the targets in load order. The returned slice is a copy.
func (r *Registry) Targets() []models.Target {
	out := make([]models.Target, len(r.targets))
	copy(out, r.targets)
	return out
}

// Critical returns the names of targets flagged critical.
func (r *Registry) Critical() []string {
	var out []string
	for _, t := range r.targets {
		if t.Critical {
			out = append(out, t.Name)
		}
	}
	return out
}

// Len reports how many targets are registered.
func (r *Registry) Len() int {
	return len(r.targets)
}
