package worker

import (
	"context"
	"fmt"
	"net/smtp"

	"solicitudes/internal/config"

	"go.uber.org/zap"
)

// Message is a single outbound email.
type Message struct {
	To       string
	ToName   string
	Subject  string
	Body     string
	HTMLBody string
}

// Sender is the outbound mail transport. Success or failure is reported
// synchronously to the caller, which records the outcome.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends mail over plain SMTP with optional auth.
type SMTPMailer struct {
	cfg    config.SMTPConfig
	logger *zap.Logger
}

func NewSMTPMailer(cfg config.SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{cfg: cfg, logger: logger}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if msg.To == "" {
		return fmt.Errorf("email 'to' field is required")
	}

	// multipart/alternative: plaintext part first, HTML part second.
	const boundary = "solicitudes-mail-boundary"
	raw := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: multipart/alternative; boundary=%q\r\n\r\n"+
			"--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n"+
			"--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n"+
			"--%s--\r\n",
		m.cfg.From, msg.To, msg.Subject, boundary,
		boundary, msg.Body,
		boundary, msg.HTMLBody,
		boundary,
	)

	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{msg.To}, []byte(raw)); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}

	m.logger.Info("email delivered via smtp",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

// LogMailer logs instead of sending. Used in development and tests.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("email (log transport)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}
