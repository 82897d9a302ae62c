// Package email delivers plain-text mail over SMTP. When delivery is disabled
// or no host is configured New returns a mailer that drops messages.
package email

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"hrkpi/internal/platform/config"
)

var ErrInvalidAddress = errors.New("invalid email address")

type Mailer interface {
	Send(ctx context.Context, from, to, subject, body string) error
}

type noopMailer struct{}

func (noopMailer) Send(ctx context.Context, from, to, subject, body string) error {
	return nil
}

type smtpMailer struct {
	host     string
	port     int
	user     string
	password string
	useTLS   bool
	now      func() time.Time
}

func New(cfg config.Config) Mailer {
	if !cfg.EmailEnabled || cfg.SMTPHost == "" {
		return noopMailer{}
	}
	return &smtpMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		useTLS:   cfg.SMTPUseTLS,
		now:      time.Now,
	}
}

// envelope is one parsed message ready for the SMTP session.
type envelope struct {
	from, to *mail.Address
	data     []byte
}

func (s *smtpMailer) Send(ctx context.Context, from, to, subject, body string) error {
	if strings.TrimSpace(to) == "" {
		return nil
	}
	env, err := s.envelope(from, to, subject, body)
	if err != nil {
		return err
	}
	client, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("smtp connect %s: %w", s.host, err)
	}
	defer client.Close()
	return s.deliver(client, env)
}

func (s *smtpMailer) envelope(from, to, subject, body string) (envelope, error) {
	fromAddr, err := mail.ParseAddress(from)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: from %q", ErrInvalidAddress, from)
	}
	toAddr, err := mail.ParseAddress(to)
	if err != nil {
		return envelope{}, fmt.Errorf("%w: to %q", ErrInvalidAddress, to)
	}
	return envelope{from: fromAddr, to: toAddr, data: buildMessage(fromAddr, toAddr, subject, body, s.now())}, nil
}

// dial opens the connection, upgrades it when TLS is on and authenticates.
// The context deadline, if any, bounds the whole session.
func (s *smtpMailer) dial(ctx context.Context) (*smtp.Client, error) {
	d := net.Dialer{Timeout: 10 * time.Second}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(s.host, strconv.Itoa(s.port)))
	if err != nil {
		return nil, err
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if s.useTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			client.Close()
			return nil, err
		}
	}
	if s.user != "" {
		if err := client.Auth(smtp.PlainAuth("", s.user, s.password, s.host)); err != nil {
			client.Close()
			return nil, err
		}
	}
	return client, nil
}

func (s *smtpMailer) deliver(client *smtp.Client, env envelope) error {
	if err := client.Mail(env.from.Address); err != nil {
		return fmt.Errorf("smtp MAIL FROM: %w", err)
	}
	if err := client.Rcpt(env.to.Address); err != nil {
		return fmt.Errorf("smtp RCPT TO: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp DATA: %w", err)
	}
	if _, err := w.Write(env.data); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

// buildMessage renders headers and body with CRLF line endings. Header values
// are single-line and non-ASCII subjects are Q-encoded.
func buildMessage(from, to *mail.Address, subject, body string, at time.Time) []byte {
	headers := []string{
		"From: " + from.String(),
		"To: " + to.String(),
		"Subject: " + mime.QEncoding.Encode("utf-8", singleLine(subject)),
		"Date: " + at.Format(time.RFC1123Z),
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
	}
	body = strings.ReplaceAll(strings.ReplaceAll(body, "\r\n", "\n"), "\n", "\r\n")
	return []byte(strings.Join(headers, "\r\n") + "\r\n" + body)
}

func singleLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
