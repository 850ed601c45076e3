package mailer

import (
	"context"
	"errors"
	"mime"
	"net/smtp"
	"strings"
	"testing"

	"github.com/policykeeper/policykeeper/config"
	apperrors "github.com/policykeeper/policykeeper/internal/errors"
)

func TestNewSelectsMode(t *testing.T) {
	if _, ok := New(config.MailerConfig{Mode: "console"}).(*ConsoleMailer); !ok {
		t.Error("console mode should return ConsoleMailer")
	}
	if _, ok := New(config.MailerConfig{Mode: "smtp", SMTPHost: "mail.example.com", To: "ops@example.com"}).(*SMTPMailer); !ok {
		t.Error("smtp mode with host should return SMTPMailer")
	}
}

func TestSMTPWithoutHostIsNotConfigured(t *testing.T) {
	m := New(config.MailerConfig{Mode: "smtp"})
	err := m.Send(context.Background(), "test", "body", "")
	if !errors.Is(err, apperrors.ErrMailerNotConfigured) {
		t.Fatalf("expected ErrMailerNotConfigured, got %v", err)
	}
}

func TestSMTPSendBuildsMessage(t *testing.T) {
	cfg := config.MailerConfig{
		Mode:     "smtp",
		SMTPHost: "mail.example.com",
		SMTPPort: 587,
		From:     "no-reply@example.com",
		To:       "a@example.com, b@example.com",
	}
	m := NewSMTPMailer(cfg)

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	m.send = func(addr string, _ smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	if err := m.Send(context.Background(), "Poliçe uyarısı", "metin", "<b>html</b>"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "mail.example.com:587" {
		t.Errorf("addr = %q", gotAddr)
	}
	if gotFrom != "no-reply@example.com" {
		t.Errorf("from = %q", gotFrom)
	}
	if len(gotTo) != 2 || gotTo[1] != "b@example.com" {
		t.Errorf("to = %v", gotTo)
	}
	body := string(gotMsg)
	for _, want := range []string{"Subject: =?utf-8?q?Poli=C3=A7e_uyar=C4=B1s=C4=B1?=", "multipart/alternative", "metin", "<b>html</b>"} {
		if !strings.Contains(body, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestSubjectHeaderEncoding(t *testing.T) {
	turkish := string(buildMessage("a@x.com", []string{"b@x.com"}, "Poliçe bitti", "gövde", ""))
	header, _, _ := strings.Cut(turkish, "\r\n\r\n")
	for _, r := range header {
		if r > 127 {
			t.Fatalf("header section carries raw non-ASCII: %q", header)
		}
	}

	var dec mime.WordDecoder
	decoded, err := dec.DecodeHeader("=?utf-8?q?Poli=C3=A7e_bitti?=")
	if err != nil || decoded != "Poliçe bitti" {
		t.Errorf("encoded subject does not round-trip: %q, %v", decoded, err)
	}

	ascii := string(buildMessage("a@x.com", []string{"b@x.com"}, "Renewal notice", "body", ""))
	if !strings.Contains(ascii, "Subject: Renewal notice\r\n") {
		t.Error("plain ASCII subject should stay unencoded")
	}
}

func TestSMTPSendWrapsTransportError(t *testing.T) {
	m := NewSMTPMailer(config.MailerConfig{SMTPHost: "mail.example.com", SMTPPort: 25, To: "x@example.com", From: "y@example.com"})
	m.send = func(string, smtp.Auth, string, []string, []byte) error {
		return errors.New("connection refused")
	}

	err := m.Send(context.Background(), "konu", "metin", "")
	var merr apperrors.MailError
	if !errors.As(err, &merr) {
		t.Fatalf("expected MailError, got %v", err)
	}
	if merr.Subject != "konu" {
		t.Errorf("subject = %q", merr.Subject)
	}
}

func TestPlainTextOnlyMessage(t *testing.T) {
	msg := string(buildMessage("a@x.com", []string{"b@x.com"}, "s", "gövde", ""))
	if strings.Contains(msg, "multipart") {
		t.Error("plain-text message must not be multipart")
	}
	if !strings.Contains(msg, "gövde") {
		t.Error("missing body")
	}
}
