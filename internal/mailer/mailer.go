package mailer

import (
	"context"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"golang.org/x/time/rate"

	"github.com/policykeeper/policykeeper/config"
	apperrors "github.com/policykeeper/policykeeper/internal/errors"
	"github.com/policykeeper/policykeeper/internal/logger"
	"github.com/policykeeper/policykeeper/internal/metrics"
)

// Mailer delivers a notification message. Implementations must be safe
// for concurrent use.
type Mailer interface {
	Send(ctx context.Context, subject, text, html string) error
}

// New selects the mailer for the configured mode. SMTP mode without a
// host falls back to a mailer that reports ErrMailerNotConfigured so
// callers can treat "no mail" as a normal condition.
func New(cfg config.MailerConfig) Mailer {
	switch cfg.Mode {
	case "smtp":
		if cfg.SMTPHost == "" || cfg.To == "" {
			logger.Warn("SMTP mail mode selected but host or recipient missing, mail disabled")
			return &disabledMailer{}
		}
		return NewSMTPMailer(cfg)
	default:
		return &ConsoleMailer{}
	}
}

// ConsoleMailer logs messages instead of delivering them. Default in
// development.
type ConsoleMailer struct{}

func (m *ConsoleMailer) Send(ctx context.Context, subject, text, _ string) error {
	logger.Info("Mail (console mode)", "subject", subject, "body", text)
	metrics.RecordMailSent("console")
	return nil
}

type disabledMailer struct{}

func (m *disabledMailer) Send(ctx context.Context, subject, _, _ string) error {
	return fmt.Errorf("send %q: %w", subject, apperrors.ErrMailerNotConfigured)
}

// SMTPMailer sends through a plain SMTP relay with an outbound rate
// cap so a large expiry batch cannot trip provider limits.
type SMTPMailer struct {
	cfg     config.MailerConfig
	limiter *rate.Limiter
	send    func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPMailer(cfg config.MailerConfig) *SMTPMailer {
	perMin := cfg.SendsPerMin
	if perMin <= 0 {
		perMin = 30
	}
	return &SMTPMailer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(perMin/60.0), 1),
		send:    smtp.SendMail,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, subject, text, html string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return apperrors.MailError{Subject: subject, Err: err}
	}

	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}
	addr := fmt.Sprintf("%s:%d", m.cfg.SMTPHost, m.cfg.SMTPPort)
	recipients := splitRecipients(m.cfg.To)

	msg := buildMessage(m.cfg.From, recipients, subject, text, html)
	if err := m.send(addr, auth, m.cfg.From, recipients, msg); err != nil {
		metrics.RecordMailSent("error")
		return apperrors.MailError{Subject: subject, Err: err}
	}
	metrics.RecordMailSent("ok")
	return nil
}

func splitRecipients(to string) []string {
	parts := strings.Split(to, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// buildMessage assembles a multipart/alternative message; the HTML part
// is omitted when empty.
func buildMessage(from string, to []string, subject, text, html string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	// Subjects carry Turkish text; headers must stay ASCII.
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")

	if html == "" {
		b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
		b.WriteString(text)
		return []byte(b.String())
	}

	const boundary = "policykeeper-alt"
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n", boundary, text)
	fmt.Fprintf(&b, "--%s\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s\r\n", boundary, html)
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return []byte(b.String())
}
