// Package notify sends plain-text email notifications for workflow
// milestones. Delivery failures are logged and reported, never fatal to
// the workflow that triggered them.
package notify

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"text/template"

	"github.com/kmoray/trestle/internal/config"
)

// sendMail is swapped in tests.
var sendMail = smtp.SendMail

// Notifier renders a template and mails the result. A nil Notifier and a
// disabled one both make Send a no-op.
type Notifier struct {
	cfg    config.NotifyConfig
	logger *slog.Logger
}

func New(cfg config.NotifyConfig, logger *slog.Logger) *Notifier {
	return &Notifier{cfg: cfg, logger: logger}
}

// Send renders tmplText with data and mails it to the configured
// recipients. Returns nil without sending when notifications are disabled.
func (n *Notifier) Send(subject, tmplText string, data any) error {
	if n == nil || !n.cfg.Enabled {
		return nil
	}
	if n.cfg.SMTPAddr == "" || n.cfg.From == "" || len(n.cfg.To) == 0 {
		n.logger.Warn("notifications enabled but smtp settings incomplete")
		return fmt.Errorf("incomplete smtp configuration")
	}

	tmpl, err := template.New("notice").Parse(tmplText)
	if err != nil {
		n.logger.Error("notification template parse failed", "error", err)
		return fmt.Errorf("parse template: %w", err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, data); err != nil {
		n.logger.Error("notification template render failed", "error", err)
		return fmt.Errorf("render template: %w", err)
	}

	msg := buildMessage(n.cfg.From, n.cfg.To, subject, body.String())
	if err := sendMail(n.cfg.SMTPAddr, nil, n.cfg.From, n.cfg.To, msg); err != nil {
		n.logger.Error("notification send failed",
			"smtp_addr", n.cfg.SMTPAddr, "subject", subject, "error", err)
		return fmt.Errorf("send mail: %w", err)
	}

	n.logger.Info("notification sent", "subject", subject, "recipients", len(n.cfg.To))
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}
