// Package email sends the transactional mail the auth flows depend on:
// OTP verification codes and password reset links.
//
// The transport is plain net/smtp with STARTTLS. The rest of the app talks
// to the Mailer interface, so services can be tested with a fake and the
// server still boots when no SMTP host is configured (sends become no-ops
// that log a warning — signup must not fail because mail is down).
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
)

// Mailer is the narrow surface the auth service calls through.
type Mailer interface {
	// SendOTP emails a verification code to a new account.
	SendOTP(ctx context.Context, to, username, code string) error
	// SendPasswordReset emails a single-use reset link.
	SendPasswordReset(ctx context.Context, to, username, link string) error
}

// SMTPConfig holds the SMTP server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string // sender address; defaults to Username when empty
}

// SMTPMailer sends mail through a real SMTP server.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPMailer creates a mailer for the given server settings.
func NewSMTPMailer(cfg SMTPConfig, logger *slog.Logger) *SMTPMailer {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPMailer{cfg: cfg, logger: logger}
}

var _ Mailer = (*SMTPMailer)(nil)

// addr is the host:port dial target for smtp.SendMail.
func (m *SMTPMailer) addr() string {
	return fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)
}

// SendOTP emails the 6-digit verification code.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, username, code string) error {
	subject := "Verify your email"
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p>Your verification code is <b>%s</b>. It expires in 10 minutes.</p>"+
			"<p>If you didn't create an account, you can ignore this email.</p>",
		username, code,
	)
	return m.send(ctx, to, subject, body)
}

// SendPasswordReset emails the reset link. The link carries the plaintext
// token; only its digest is stored server-side.
func (m *SMTPMailer) SendPasswordReset(ctx context.Context, to, username, link string) error {
	subject := "Reset your password"
	body := fmt.Sprintf(
		"<p>Hi %s,</p>"+
			"<p><a href=%q>Click here to reset your password</a>. The link expires in 1 hour.</p>"+
			"<p>If you didn't request a reset, you can ignore this email.</p>",
		username, link,
	)
	return m.send(ctx, to, subject, body)
}

// send composes an HTML message and hands it to the SMTP server.
// smtp.SendMail negotiates STARTTLS when the server advertises it.
func (m *SMTPMailer) send(ctx context.Context, to, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", m.cfg.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := m.addr()
	auth := smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("email: sending to %s via %s: %w", to, addr, err)
	}

	m.logger.Info("email sent", slog.String("to", to), slog.String("subject", subject))
	return nil
}

// NopMailer is used when no SMTP server is configured. Every send succeeds
// after logging what would have gone out, so local development works
// without mail infrastructure.
type NopMailer struct {
	logger *slog.Logger
}

// NewNopMailer creates a mailer that only logs.
func NewNopMailer(logger *slog.Logger) *NopMailer {
	return &NopMailer{logger: logger}
}

var _ Mailer = (*NopMailer)(nil)

func (m *NopMailer) SendOTP(_ context.Context, to, _, code string) error {
	m.logger.Warn("SMTP not configured — OTP email not sent",
		slog.String("to", to),
		slog.String("code", code),
	)
	return nil
}

func (m *NopMailer) SendPasswordReset(_ context.Context, to, _, link string) error {
	m.logger.Warn("SMTP not configured — reset email not sent",
		slog.String("to", to),
		slog.String("link", link),
	)
	return nil
}
