package notify

import (
	"context"
	"errors"
	"fmt"

	"monitoring-service/internal/logging"
	"monitoring-service/internal/models"
)

// Notifier delivers an escalation through one channel.
type Notifier interface {
	Notify(ctx context.Context, target models.Target, rec models.EscalationRecord) error
}

// Multi fans one escalation out to every configured channel. A channel
// failure does not stop the others; all errors are joined.
type Multi struct {
	Notifiers []Notifier
}

func (m *Multi) Notify(ctx context.Context, target models.Target, rec models.EscalationRecord) error {
	var errs []error
	for _, n := range m.Notifiers {
		if err := n.Notify(ctx, target, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes the escalation to the service log only. Used when no
// operator channel is configured.
type Log struct {
	Logger *logging.Logger
}

func (l *Log) Notify(ctx context.Context, target models.Target, rec models.EscalationRecord) error {
	l.Logger.Errorf("ESCALATION: target %s failing, %d recovery attempts failed (last error: %s)",
		target.Name, rec.RetryCount, rec.LastAttemptErr)
	return nil
}

func message(target models.Target, rec models.EscalationRecord) (subject, body string) {
	subject = fmt.Sprintf("ESCALATION: %s is failing", target.Name)
	body = fmt.Sprintf(
		"Target: %s\nRecovery attempts: %d\nLast attempt error: %s\nEscalation level: %s",
		target.Name, rec.RetryCount, rec.LastAttemptErr, rec.Level)
	return subject, body
}
