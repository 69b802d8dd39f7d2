package controlplane

import (
	"context"
	"sync"
	"time"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

// RecoveryAction attempts to bring a failing target back. Concrete
// implementations are bound per target in configuration; the
// controller only sequences them.
type RecoveryAction interface {
	Attempt(ctx context.Context, target models.Target) error
}

// Notifier delivers an escalation to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, target models.Target, rec models.EscalationRecord) error
}

// StatusSource exposes the current state of one target.
type StatusSource interface {
	Status(name string) (models.TargetStatus, bool)
}

// Config tunes the escalation state machine.
type Config struct {
	// GracePeriod is how long a recovery attempt gets before the
	// controller checks whether the target recovered.
	GracePeriod time.Duration
	// MaxRetries is the number of failed recovery attempts before
	// escalating to the notifier.
	MaxRetries int
	// Tick is the sweep interval for time-based advances.
	Tick time.Duration
}

// Controller runs the per-target escalation state machine:
// none -> warn -> retry -> escalate -> notified, reset to none on any
// healthy transition. A single goroutine consumes events, so a given
// target's transitions are processed in emission order.
type Controller struct {
	cfg      Config
	targets  map[string]models.Target
	statuses StatusSource
	actions  map[string]RecoveryAction
	notifier Notifier
	events   <-chan models.TransitionEvent
	logger   *logging.Logger

	mu      sync.Mutex
	records map[string]*models.EscalationRecord
}

func New(cfg Config, targets []models.Target, statuses StatusSource, actions map[string]RecoveryAction, notifier Notifier, events <-chan models.TransitionEvent, logger *logging.Logger) *Controller {
	if cfg.Tick <= 0 {
		cfg.Tick = 5 * time.Second
	}
	byName := make(map[string]models.Target, len(targets))
	records := make(map[string]*models.EscalationRecord, len(targets))
	for _, t := range targets {
		byName[t.Name] = t
		records[t.Name] = &models.EscalationRecord{Target: t.Name, Level: models.LevelNone}
	}
	return &Controller{
		cfg:      cfg,
		targets:  byName,
		statuses: statuses,
		actions:  actions,
		notifier: notifier,
		events:   events,
		logger:   logger,
		records:  records,
	}
}

// Run processes transition events and time-based advances until ctx is
// cancelled or the event channel closes.
func (c *Controller) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.handleEvent(ctx, ev, time.Now())
		case <-ticker.C:
			c.sweep(ctx, time.Now())
		}
	}
}

func (c *Controller) handleEvent(ctx context.Context, ev models.TransitionEvent, now time.Time) {
	c.mu.Lock()
	rec, ok := c.records[ev.Target]
	c.mu.Unlock()
	if !ok {
		c.logger.Warnf("transition for unknown target %q ignored", ev.Target)
		return
	}

	switch ev.To {
	case models.StateHealthy:
		c.mu.Lock()
		if rec.Level != models.LevelNone {
			c.logger.Infof("target %s recovered, escalation reset from %s", ev.Target, rec.Level)
		}
		*rec = models.EscalationRecord{Target: ev.Target, Level: models.LevelNone}
		c.mu.Unlock()
	case models.StateFailing:
		c.mu.Lock()
		advance := rec.Level == models.LevelNone
		if advance {
			rec.Level = models.LevelWarn
			rec.EnteredAt = now
		}
		c.mu.Unlock()
		if advance {
			c.logger.Warnf("target %s failing, escalation level warn", ev.Target)
			c.attemptRecovery(ctx, ev.Target, now)
		}
	}
}

// sweep advances records whose grace period elapsed while the target
// is still failing.
func (c *Controller) sweep(ctx context.Context, now time.Time) {
	for _, name := range c.targetNames() {
		c.sweepTarget(ctx, name, now)
	}
}

func (c *Controller) sweepTarget(ctx context.Context, name string, now time.Time) {
	c.mu.Lock()
	rec := c.records[name]
	level := rec.Level
	entered := rec.EnteredAt
	lastAttempt := rec.LastAttempt
	retries := rec.RetryCount
	c.mu.Unlock()

	if level == models.LevelNone || level == models.LevelNotified {
		return
	}
	st, ok := c.statuses.Status(name)
	if !ok || st.State != models.StateFailing {
		// Recovering or recovered; the healthy transition event will
		// reset the record.
		return
	}

	switch level {
	case models.LevelWarn:
		if now.Sub(entered) < c.cfg.GracePeriod {
			return
		}
		c.mu.Lock()
		rec.Level = models.LevelRetry
		rec.EnteredAt = now
		c.mu.Unlock()
		c.logger.Warnf("target %s still failing after grace period, escalation level retry", name)
		c.attemptRecovery(ctx, name, now)
	case models.LevelRetry:
		if retries >= c.cfg.MaxRetries {
			c.escalate(ctx, name, now)
			return
		}
		if now.Sub(lastAttempt) < c.cfg.GracePeriod {
			return
		}
		c.attemptRecovery(ctx, name, now)
	case models.LevelEscalate:
		// Notification failed earlier; try again.
		c.escalate(ctx, name, now)
	}
}

// attemptRecovery invokes the bound action. Action failure is recorded
// and counted toward escalation, never fatal.
func (c *Controller) attemptRecovery(ctx context.Context, name string, now time.Time) {
	target := c.targets[name]
	action := c.actions[name]

	c.mu.Lock()
	rec := c.records[name]
	rec.RetryCount++
	rec.LastAttempt = now
	attempt := rec.RetryCount
	c.mu.Unlock()

	if action == nil {
		c.logger.Infof("target %s has no recovery action bound", name)
		return
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.GracePeriod)
	err := action.Attempt(attemptCtx, target)
	cancel()

	c.mu.Lock()
	if err != nil {
		rec.LastAttemptErr = err.Error()
	} else {
		rec.LastAttemptErr = ""
	}
	c.mu.Unlock()

	if err != nil {
		c.logger.Errorf("recovery attempt %d for %s failed: %v", attempt, name, err)
	} else {
		c.logger.Infof("recovery attempt for %s succeeded, awaiting healthy transition", name)
	}
}

// escalate invokes the notifier; on success the record parks at
// notified until the target recovers.
func (c *Controller) escalate(ctx context.Context, name string, now time.Time) {
	c.mu.Lock()
	rec := c.records[name]
	if rec.Level != models.LevelEscalate {
		rec.Level = models.LevelEscalate
		rec.EnteredAt = now
	}
	snapshot := *rec
	c.mu.Unlock()

	c.logger.Errorf("target %s exhausted %d recovery attempts, escalating", name, snapshot.RetryCount)

	notifyCtx, cancel := context.WithTimeout(ctx, c.cfg.GracePeriod)
	err := c.notifier.Notify(notifyCtx, c.targets[name], snapshot)
	cancel()
	if err != nil {
		c.logger.Errorf("escalation notify for %s failed: %v", name, err)
		return
	}

	c.mu.Lock()
	rec.Level = models.LevelNotified
	rec.EnteredAt = now
	c.mu.Unlock()
	c.logger.Infof("operator notified for %s", name)
}

// Records returns a copy of all escalation records.
func (c *Controller) Records() map[string]models.EscalationRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]models.EscalationRecord, len(c.records))
	for name, rec := range c.records {
		out[name] = *rec
	}
	return out
}

func (c *Controller) targetNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.records))
	for name := range c.records {
		names = append(names, name)
	}
	return names
}
