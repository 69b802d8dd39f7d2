package controlplane

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

type stubAction struct {
	calls int
	err   error
}

func (a *stubAction) Attempt(ctx context.Context, target models.Target) error {
	a.calls++
	return a.err
}

type stubNotifier struct {
	calls int
	err   error
	last  models.EscalationRecord
}

func (n *stubNotifier) Notify(ctx context.Context, target models.Target, rec models.EscalationRecord) error {
	n.calls++
	n.last = rec
	return n.err
}

type stubStatuses map[string]models.State

func (s stubStatuses) Status(name string) (models.TargetStatus, bool) {
	state, ok := s[name]
	return models.TargetStatus{Target: name, State: state}, ok
}

func newTestController(statuses stubStatuses, action RecoveryAction, notifier Notifier) *Controller {
	targets := []models.Target{{Name: "vpn"}}
	actions := map[string]RecoveryAction{}
	if action != nil {
		actions["vpn"] = action
	}
	return New(Config{
		GracePeriod: 10 * time.Second,
		MaxRetries:  2,
	}, targets, statuses, actions, notifier, nil, logging.NewNop())
}

func failingEvent(at time.Time) models.TransitionEvent {
	return models.TransitionEvent{Target: "vpn", From: models.StateDegraded, To: models.StateFailing, Timestamp: at}
}

func healthyEvent(at time.Time) models.TransitionEvent {
	return models.TransitionEvent{Target: "vpn", From: models.StateDegraded, To: models.StateHealthy, Timestamp: at}
}

func TestController_FailingEntersWarnAndAttemptsRecovery(t *testing.T) {
	action := &stubAction{err: errors.New("still down")}
	c := newTestController(stubStatuses{"vpn": models.StateFailing}, action, &stubNotifier{})
	now := time.Now()

	c.handleEvent(context.Background(), failingEvent(now), now)

	rec := c.Records()["vpn"]
	assert.Equal(t, models.LevelWarn, rec.Level)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Equal(t, "still down", rec.LastAttemptErr)
	assert.Equal(t, 1, action.calls)
}

func TestController_RepeatedFailingEventDoesNotReenterWarn(t *testing.T) {
	action := &stubAction{}
	c := newTestController(stubStatuses{"vpn": models.StateFailing}, action, &stubNotifier{})
	now := time.Now()

	c.handleEvent(context.Background(), failingEvent(now), now)
	c.handleEvent(context.Background(), failingEvent(now.Add(time.Second)), now.Add(time.Second))

	rec := c.Records()["vpn"]
	assert.Equal(t, models.LevelWarn, rec.Level)
	assert.Equal(t, 1, action.calls)
}

func TestController_EscalationPath(t *testing.T) {
	action := &stubAction{err: errors.New("still down")}
	notifier := &stubNotifier{}
	c := newTestController(stubStatuses{"vpn": models.StateFailing}, action, notifier)
	now := time.Now()

	c.handleEvent(context.Background(), failingEvent(now), now)
	require.Equal(t, models.LevelWarn, c.Records()["vpn"].Level)

	// Grace not elapsed: nothing moves.
	c.sweep(context.Background(), now.Add(5*time.Second))
	assert.Equal(t, models.LevelWarn, c.Records()["vpn"].Level)

	// Grace elapsed: warn -> retry with another attempt.
	now = now.Add(11 * time.Second)
	c.sweep(context.Background(), now)
	rec := c.Records()["vpn"]
	assert.Equal(t, models.LevelRetry, rec.Level)
	assert.Equal(t, 2, rec.RetryCount)

	// Retry budget (2) exhausted: retry -> escalate -> notified.
	now = now.Add(11 * time.Second)
	c.sweep(context.Background(), now)
	rec = c.Records()["vpn"]
	assert.Equal(t, models.LevelNotified, rec.Level)
	assert.Equal(t, 1, notifier.calls)
	assert.Equal(t, models.LevelEscalate, notifier.last.Level)

	// Parked at notified: further sweeps do nothing.
	c.sweep(context.Background(), now.Add(time.Hour))
	assert.Equal(t, models.LevelNotified, c.Records()["vpn"].Level)
	assert.Equal(t, 1, notifier.calls)
}

func TestController_NotifyFailureRetriesOnNextSweep(t *testing.T) {
	action := &stubAction{err: errors.New("still down")}
	notifier := &stubNotifier{err: errors.New("telegram down")}
	c := newTestController(stubStatuses{"vpn": models.StateFailing}, action, notifier)
	now := time.Now()

	c.handleEvent(context.Background(), failingEvent(now), now)
	now = now.Add(11 * time.Second)
	c.sweep(context.Background(), now)
	now = now.Add(11 * time.Second)
	c.sweep(context.Background(), now)

	require.Equal(t, models.LevelEscalate, c.Records()["vpn"].Level)
	require.Equal(t, 1, notifier.calls)

	notifier.err = nil
	c.sweep(context.Background(), now.Add(time.Second))
	assert.Equal(t, models.LevelNotified, c.Records()["vpn"].Level)
	assert.Equal(t, 2, notifier.calls)
}

func TestController_HealthyResetsToNone(t *testing.T) {
	action := &stubAction{err: errors.New("still down")}
	c := newTestController(stubStatuses{"vpn": models.StateFailing}, action, &stubNotifier{})
	now := time.Now()

	c.handleEvent(context.Background(), failingEvent(now), now)
	require.Equal(t, models.LevelWarn, c.Records()["vpn"].Level)

	c.handleEvent(context.Background(), healthyEvent(now.Add(time.Minute)), now.Add(time.Minute))

	rec := c.Records()["vpn"]
	assert.Equal(t, models.LevelNone, rec.Level)
	assert.Equal(t, 0, rec.RetryCount)
	assert.Empty(t, rec.LastAttemptErr)
}

func TestController_SweepHoldsWhileTargetRecovering(t *testing.T) {
	action := &stubAction{err: errors.New("still down")}
	statuses := stubStatuses{"vpn": models.StateFailing}
	c := newTestController(statuses, action, &stubNotifier{})
	now := time.Now()

	c.handleEvent(context.Background(), failingEvent(now), now)

	// Probe side sees the target coming back; no further escalation
	// until the healthy event lands.
	statuses["vpn"] = models.StateDegraded
	c.sweep(context.Background(), now.Add(time.Hour))
	assert.Equal(t, models.LevelWarn, c.Records()["vpn"].Level)
	assert.Equal(t, 1, action.calls)
}

func TestController_RunProcessesEventStream(t *testing.T) {
	action := &stubAction{err: errors.New("still down")}
	events := make(chan models.TransitionEvent, 4)
	c := New(Config{
		GracePeriod: time.Hour,
		MaxRetries:  2,
		Tick:        time.Hour,
	}, []models.Target{{Name: "vpn"}}, stubStatuses{"vpn": models.StateFailing},
		map[string]RecoveryAction{"vpn": action}, &stubNotifier{}, events, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	events <- failingEvent(time.Now())
	require.Eventually(t, func() bool {
		return c.Records()["vpn"].Level == models.LevelWarn
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}
