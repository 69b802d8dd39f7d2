package scheduler

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/probe"
	"monitoring-service/internal/registry"
)

// statusCell holds one target's live status behind its own lock, so
// unrelated targets never contend.
type statusCell struct {
	mu     sync.Mutex
	status models.TargetStatus
}

// Scheduler runs an independent polling loop per target and owns the
// live status map. Transition events are delivered on Events() in
// probe-execution order per target.
type Scheduler struct {
	registry *registry.Registry
	logger   *logging.Logger
	probers  map[string]probe.Prober
	cells    map[string]*statusCell
	events   chan models.TransitionEvent
	wg       sync.WaitGroup
}

// New builds a scheduler for every registered target. Probers are
// resolved here so a bad probe kind fails fast.
func New(reg *registry.Registry, logger *logging.Logger) (*Scheduler, error) {
	s := &Scheduler{
		registry: reg,
		logger:   logger,
		probers:  make(map[string]probe.Prober, reg.Len()),
		cells:    make(map[string]*statusCell, reg.Len()),
		events:   make(chan models.TransitionEvent, 128),
	}
	for _, t := range reg.Targets() {
		p, err := probe.ForKind(t.Kind)
		if err != nil {
			return nil, err
		}
		s.probers[t.Name] = p
		s.cells[t.Name] = &statusCell{
			status: models.TargetStatus{Target: t.Name, State: models.StateUnknown},
		}
	}
	return s, nil
}

// Events returns the transition event stream.
func (s *Scheduler) Events() <-chan models.TransitionEvent {
	return s.events
}

// Start launches one polling goroutine per target.
func (s *Scheduler) Start(ctx context.Context) {
	for _, t := range s.registry.Targets() {
		s.wg.Add(1)
		go s.runTarget(ctx, t)
	}
}

// Wait blocks until all polling loops have stopped.
func (s *Scheduler) Wait() {
	s.wg.Wait()
	close(s.events)
}

func (s *Scheduler) runTarget(ctx context.Context, target models.Target) {
	defer s.wg.Done()

	// Spread the first polls so targets with the same interval do not
	// fire in lockstep.
	jitter := time.Duration(rand.Int63n(int64(target.Interval)))
	select {
	case <-ctx.Done():
		return
	case <-time.After(jitter):
	}

	s.poll(ctx, target)

	ticker := time.NewTicker(target.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.poll(ctx, target)
		}
	}
}

func (s *Scheduler) poll(ctx context.Context, target models.Target) {
	probeCtx, cancel := context.WithTimeout(ctx, target.Timeout)
	result := s.probers[target.Name].Check(probeCtx, target)
	cancel()

	cell := s.cells[target.Name]
	cell.mu.Lock()
	event, changed := applyResult(&cell.status, result, target.FailureThreshold, target.SuccessThreshold)
	cell.mu.Unlock()

	if result.Success {
		s.logger.Debugf("target %s ok (%.0fms)", target.Name, result.Latency.Seconds()*1000)
	} else {
		s.logger.Warnf("target %s check failed: %s", target.Name, result.Reason)
	}

	if !changed {
		return
	}
	s.logger.Infof("target %s transitioned %s -> %s", event.Target, event.From, event.To)
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

// applyResult folds one probe result into a target's status and reports
// whether a state transition occurred. Failure and success thresholds
// debounce flapping: a single bad poll moves a healthy target to
// degraded, never straight to failing.
func applyResult(st *models.TargetStatus, res models.ProbeResult, failTh, okTh int) (models.TransitionEvent, bool) {
	if res.Success {
		st.ConsecutiveSuccess++
		st.ConsecutiveFailures = 0
	} else {
		st.ConsecutiveFailures++
		st.ConsecutiveSuccess = 0
	}

	var next models.State
	switch {
	case st.ConsecutiveFailures >= failTh:
		next = models.StateFailing
	case st.ConsecutiveSuccess >= okTh:
		next = models.StateHealthy
	default:
		next = models.StateDegraded
	}

	prev := st.State
	st.LastResult = &res
	st.LastCheckedAt = res.CheckedAt
	st.LastLatencyMS = float64(res.Latency.Milliseconds())
	st.LastReason = res.Reason

	if next == prev {
		return models.TransitionEvent{}, false
	}
	st.State = next
	st.LastTransition = res.CheckedAt
	return models.TransitionEvent{
		Target:    st.Target,
		From:      prev,
		To:        next,
		Timestamp: res.CheckedAt,
	}, true
}

// Status returns a copy of one target's current status.
func (s *Scheduler) Status(name string) (models.TargetStatus, bool) {
	cell, ok := s.cells[name]
	if !ok {
		return models.TargetStatus{}, false
	}
	cell.mu.Lock()
	defer cell.mu.Unlock()
	return cell.status, true
}

// Snapshot returns a copy of the full status map. Targets that have
// never been polled appear as unknown, never omitted.
func (s *Scheduler) Snapshot() map[string]models.TargetStatus {
	out := make(map[string]models.TargetStatus, len(s.cells))
	for name, cell := range s.cells {
		cell.mu.Lock()
		out[name] = cell.status
		cell.mu.Unlock()
	}
	return out
}
