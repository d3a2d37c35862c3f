package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/goliatone/go-errors"

	study "github.com/goliatone/go-study"
)

// SMTP delivers mail over a plain, TLS, or STARTTLS connection.
type SMTP struct {
	from     string
	host     string
	port     int
	username string
	password string
	useTLS   bool
	startTLS bool
}

func NewSMTP(cfg study.EmailConfig) *SMTP {
	port := cfg.Port
	if port == 0 {
		port = 25
	}
	return &SMTP{
		from:     cfg.FromAddress,
		host:     cfg.Host,
		port:     port,
		username: cfg.Username,
		password: cfg.Password,
		useTLS:   cfg.UseTLS,
		startTLS: cfg.StartTLS,
	}
}

func (s *SMTP) Send(ctx context.Context, to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)

	conn, err := s.dial(ctx, addr)
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp dial failed")
	}

	client, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return errors.Wrap(err, errors.CategoryOperation, "smtp handshake failed")
	}
	defer client.Close()

	if s.startTLS && !s.useTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.host}); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "smtp starttls failed")
		}
	}

	if s.username != "" {
		auth := smtp.PlainAuth("", s.username, s.password, s.host)
		if err := client.Auth(auth); err != nil {
			return errors.Wrap(err, errors.CategoryOperation, "smtp auth failed")
		}
	}

	if err := client.Mail(s.from); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp mail from rejected")
	}
	if err := client.Rcpt(to); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp recipient rejected")
	}

	w, err := client.Data()
	if err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp data command failed")
	}
	if _, err := w.Write([]byte(buildMessage(s.from, to, subject, htmlBody))); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp write failed")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "smtp message rejected")
	}

	return client.Quit()
}

func (s *SMTP) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{}
	if s.useTLS {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: s.host},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func buildMessage(from, to, subject, htmlBody string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return b.String()
}
