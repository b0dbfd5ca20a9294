// Package mailer delivers plain text mail over SMTP.
package mailer

import (
	"bytes"
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

	"github.com/spec-kit/grievance-portal/internal/config"
)

// ErrNotConfigured is returned by New when no SMTP host is set.
var ErrNotConfigured = errors.New("no mail transport configured")

const (
	defaultSMTPPort    = 587
	defaultSendTimeout = 10 * time.Second
)

// Message is a single plain text mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender submits mail to a relay, upgrading to TLS when the relay
// offers STARTTLS.
type SMTPSender struct {
	addr    string
	host    string
	from    *mail.Address
	auth    smtp.Auth
	timeout time.Duration
	now     func() time.Time
}

// New builds an SMTP sender from cfg.
func New(cfg config.NotificationConfig) (*SMTPSender, error) {
	host := strings.TrimSpace(cfg.SMTPHost)
	if host == "" {
		return nil, ErrNotConfigured
	}
	from, err := mail.ParseAddress(cfg.EmailFrom)
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_EMAIL_FROM %q: %w", cfg.EmailFrom, err)
	}

	port := cfg.SMTPPort
	if port <= 0 {
		port = defaultSMTPPort
	}
	timeout := cfg.SMTPTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}

	s := &SMTPSender{
		addr:    net.JoinHostPort(host, strconv.Itoa(port)),
		host:    host,
		from:    from,
		timeout: timeout,
		now:     time.Now,
	}
	if cfg.SMTPUsername != "" {
		// PlainAuth refuses to send credentials unless the link is TLS or
		// the relay is on localhost.
		s.auth = smtp.PlainAuth("", cfg.SMTPUsername, cfg.SMTPPassword, host)
	}
	return s, nil
}

// Send delivers msg, giving up when ctx or the send timeout expires.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	to, err := mail.ParseAddress(msg.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", s.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.auth != nil {
		if err := client.Auth(s.auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := client.Mail(s.from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to.Address); err != nil {
		return fmt.Errorf("smtp rcpt %s: %w", to.Address, err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(s.compose(to, msg)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	return client.Quit()
}

func (s *SMTPSender) compose(to *mail.Address, msg Message) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\n", s.from.String())
	fmt.Fprintf(&buf, "To: %s\n", to.String())
	fmt.Fprintf(&buf, "Subject: %s\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\n", s.now().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\n")
	buf.WriteString("Content-Type: text/plain; charset=utf-8\n")
	buf.WriteString("Content-Transfer-Encoding: 8bit\n\n")
	buf.WriteString(strings.ReplaceAll(msg.Body, "\r\n", "\n"))
	if !strings.HasSuffix(msg.Body, "\n") {
		buf.WriteString("\n")
	}
	return buf.Bytes()
}
