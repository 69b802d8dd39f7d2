package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
	"monitoring-service/internal/registry"
)

func result(target string, ok bool, at time.Time) models.ProbeResult {
	res := models.ProbeResult{Target: target, CheckedAt: at, Success: ok}
	if !ok {
		res.Reason = models.ReasonUnreachable
	}
	return res
}

func TestApplyResult_FailingAfterThreshold(t *testing.T) {
	st := models.TargetStatus{Target: "vpn", State: models.StateUnknown}
	now := time.Now()

	var events []models.TransitionEvent
	for i := 0; i < 3; i++ {
		ev, changed := applyResult(&st, result("vpn", false, now.Add(time.Duration(i)*time.Second)), 3, 2)
		if changed {
			events = append(events, ev)
		}
	}

	assert.Equal(t, models.StateFailing, st.State)
	assert.Equal(t, 3, st.ConsecutiveFailures)
	// unknown -> degraded on the first failure, degraded -> failing on the third
	require.Len(t, events, 2)
	assert.Equal(t, models.StateDegraded, events[0].To)
	assert.Equal(t, models.StateFailing, events[1].To)
}

func TestApplyResult_NoEventOnRepeatedState(t *testing.T) {
	st := models.TargetStatus{Target: "vpn", State: models.StateUnknown}
	now := time.Now()

	for i := 0; i < 3; i++ {
		applyResult(&st, result("vpn", false, now), 3, 2)
	}
	require.Equal(t, models.StateFailing, st.State)

	// further failures must not emit another event
	for i := 0; i < 5; i++ {
		_, changed := applyResult(&st, result("vpn", false, now), 3, 2)
		assert.False(t, changed)
	}
	assert.Equal(t, 8, st.ConsecutiveFailures)
}

func TestApplyResult_RecoveryAfterSuccessThreshold(t *testing.T) {
	st := models.TargetStatus{Target: "vpn", State: models.StateUnknown}
	now := time.Now()

	for i := 0; i < 3; i++ {
		applyResult(&st, result("vpn", false, now), 3, 2)
	}
	require.Equal(t, models.StateFailing, st.State)

	ev, changed := applyResult(&st, result("vpn", true, now), 3, 2)
	require.True(t, changed)
	assert.Equal(t, models.StateDegraded, ev.To, "one success is not yet healthy")
	assert.Equal(t, 0, st.ConsecutiveFailures)

	ev, changed = applyResult(&st, result("vpn", true, now), 3, 2)
	require.True(t, changed)
	assert.Equal(t, models.StateHealthy, ev.To)
	assert.Equal(t, models.StateDegraded, ev.From)
	assert.Equal(t, 2, st.ConsecutiveSuccess)
}

func TestApplyResult_SingleFailureDegradesHealthy(t *testing.T) {
	st := models.TargetStatus{Target: "vpn", State: models.StateUnknown}
	now := time.Now()

	applyResult(&st, result("vpn", true, now), 3, 2)
	applyResult(&st, result("vpn", true, now), 3, 2)
	require.Equal(t, models.StateHealthy, st.State)

	ev, changed := applyResult(&st, result("vpn", false, now), 3, 2)
	require.True(t, changed)
	assert.Equal(t, models.StateDegraded, ev.To, "a transient failure debounces, never straight to failing")
	assert.Equal(t, 0, st.ConsecutiveSuccess)
}

type fakeProber struct {
	results chan bool
}

func (f *fakeProber) Check(ctx context.Context, target models.Target) models.ProbeResult {
	ok := <-f.results
	return result(target.Name, ok, time.Now())
}

func TestScheduler_EmitsTransitions(t *testing.T) {
	reg, err := registry.New([]models.Target{{
		Name:             "vpn",
		Kind:             models.ProbeTCP,
		Host:             "127.0.0.1",
		Port:             9,
		Interval:         5 * time.Millisecond,
		Timeout:          time.Second,
		FailureThreshold: 2,
		SuccessThreshold: 1,
	}})
	require.NoError(t, err)

	s, err := New(reg, logging.NewNop())
	require.NoError(t, err)

	fake := &fakeProber{results: make(chan bool, 8)}
	fake.results <- false
	fake.results <- false
	fake.results <- true
	s.probers["vpn"] = fake

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)

	var events []models.TransitionEvent
	deadline := time.After(2 * time.Second)
	for len(events) < 3 {
		select {
		case ev := <-s.Events():
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("timed out, got %d events", len(events))
		}
	}
	cancel()
	// unblock a possible in-flight check
	close(fake.results)
	s.Wait()

	assert.Equal(t, models.StateDegraded, events[0].To)
	assert.Equal(t, models.StateFailing, events[1].To)
	assert.Equal(t, models.StateHealthy, events[2].To)

	st, ok := s.Status("vpn")
	require.True(t, ok)
	assert.Equal(t, models.StateHealthy, st.State)
}

func TestScheduler_SnapshotIncludesUnpolledTargets(t *testing.T) {
	reg, err := registry.New([]models.Target{{
		Name:             "vpn",
		Kind:             models.ProbeTCP,
		Host:             "127.0.0.1",
		Port:             9,
		Interval:         time.Hour,
		Timeout:          time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	}})
	require.NoError(t, err)

	s, err := New(reg, logging.NewNop())
	require.NoError(t, err)

	snap := s.Snapshot()
	require.Contains(t, snap, "vpn")
	assert.Equal(t, models.StateUnknown, snap["vpn"].State)
}
