package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"monitoring-service/internal/models"
)

// Email sends escalations over SMTP.
type Email struct {
	SMTPServer string
	SMTPPort   int
	Username   string
	Password   string
	To         string
}

func (e *Email) Notify(ctx context.Context, target models.Target, rec models.EscalationRecord) error {
	if !strings.Contains(e.To, "@") {
		return fmt.Errorf("invalid email address: %s", e.To)
	}
	if e.SMTPServer == "" || e.SMTPPort == 0 || e.Username == "" {
		return fmt.Errorf("missing email configuration: SMTPServer, SMTPPort, or Username is empty")
	}

	subject, body := message(target, rec)
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", e.To, subject, body))
	auth := smtp.PlainAuth("", e.Username, e.Password, e.SMTPServer)
	addr := fmt.Sprintf("%s:%d", e.SMTPServer, e.SMTPPort)

	if err := smtp.SendMail(addr, auth, e.Username, []string{e.To}, msg); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", e.To, err)
	}
	return nil
}
