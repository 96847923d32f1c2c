// Package mailer sends account email such as magic sign-in links.
package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/jerin288/jdt-tool-web/internal/config"
	"github.com/jerin288/jdt-tool-web/internal/logging"
)

// Message is one plain-text email with an optional HTML alternative.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a single message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers through an SMTP relay using STARTTLS.
type SMTPSender struct {
	cfg config.SMTPConfig
}

// NewSMTPSender validates the settings and returns a sender.
func NewSMTPSender(cfg config.SMTPConfig) (*SMTPSender, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPSender{cfg: cfg}, nil
}

// Send dials the relay and delivers msg.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.cfg.From); err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(15 * time.Second),
	}
	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// LogSender writes messages to the log instead of sending them. It is
// used when SMTP is not configured, which keeps magic links usable in
// development.
type LogSender struct{}

// Send logs msg.
func (LogSender) Send(_ context.Context, msg Message) error {
	logging.Info("📧 Email (not sent, SMTP not configured)", "to", msg.To, "subject", msg.Subject, "body", msg.Text)
	return nil
}

// NewSender picks the SMTP sender when configured, else the log sender.
func NewSender(cfg config.SMTPConfig) Sender {
	if s, err := NewSMTPSender(cfg); err == nil {
		return s
	}
	return LogSender{}
}

// MagicLinkMessage builds the sign-in email for a magic link.
func MagicLinkMessage(to, link string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	return Message{
		To:      to,
		Subject: "Your JDT PDF Converter sign-in link",
		Text: fmt.Sprintf("Click the link below to sign in. It expires in %d minutes.\n\n%s\n\n"+
			"If you did not ask for this email you can ignore it.\n", minutes, link),
		HTML: fmt.Sprintf(`<p>Click the link below to sign in. It expires in %d minutes.</p>`+
			`<p><a href="%s">Sign in</a></p><p>If you did not ask for this email you can ignore it.</p>`, minutes, link),
	}
}
