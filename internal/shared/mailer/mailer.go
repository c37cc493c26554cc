// Package mailer sends transactional e-mail over SMTP.
package mailer

import (
	"context"
	"fmt"

	"gopkg.in/gomail.v2"

	"workforce-backend/internal/shared/config"
	"workforce-backend/internal/shared/telemetry"
)

// Email is a single outgoing message.
type Email struct {
	To       []string
	Subject  string
	Body     string
	HTMLBody string
}

// Sender delivers e-mail.
type Sender interface {
	Send(ctx context.Context, email Email) error
}

// New returns an SMTP sender, or a log-only sender when no host is configured.
func New(cfg config.SMTP) Sender {
	if cfg.Host == "" {
		return LogSender{}
	}
	return &SMTPSender{
		from:   cfg.From,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

// SMTPSender sends through a gomail dialer.
type SMTPSender struct {
	from   string
	dialer *gomail.Dialer
}

func (m *SMTPSender) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := buildMessage(m.from, email)
	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildMessage(from string, email Email) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", from)
	msg.SetHeader("To", email.To...)
	msg.SetHeader("Subject", email.Subject)
	if email.HTMLBody != "" {
		msg.SetBody("text/html", email.HTMLBody)
		if email.Body != "" {
			msg.AddAlternative("text/plain", email.Body)
		}
	} else {
		msg.SetBody("text/plain", email.Body)
	}
	return msg
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, email Email) error {
	if len(email.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	telemetry.Info("mailer.logged", map[string]any{
		"to":      email.To,
		"subject": email.Subject,
		"body":    email.Body,
	})
	return nil
}
