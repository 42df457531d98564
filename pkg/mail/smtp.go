package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/payvide/payworker/pkg/config"
)

// SMTPMailer implements Mailer over net/smtp.
type SMTPMailer struct {
	cfg config.MailConfig
}

// NewSMTPMailer creates a new SMTPMailer
func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

// Send delivers the message. Port 465 (or encryption "ssl") uses
// implicit TLS; otherwise smtp.SendMail negotiates STARTTLS when the
// server offers it.
func (m *SMTPMailer) Send(ctx context.Context, msg *Message) error {
	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	applyDefaultFrom(msg, m.cfg)

	body := buildEmailBody(msg)

	var auth smtp.Auth
	if m.cfg.Username != "" && m.cfg.Password != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	fromAddr, err := parseEmailAddress(msg.From)
	if err != nil {
		return fmt.Errorf("invalid from address: %w", err)
	}

	recipients := allRecipients(msg)

	if m.cfg.Encryption == "ssl" || m.cfg.Port == "465" {
		return m.sendWithImplicitTLS(addr, auth, fromAddr, recipients, []byte(body))
	}
	return smtp.SendMail(addr, auth, fromAddr, recipients, []byte(body))
}

func (m *SMTPMailer) sendWithImplicitTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: m.cfg.Host})
	if err != nil {
		return fmt.Errorf("failed to dial TLS: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.cfg.Host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() {
		_ = client.Quit()
	}()

	if auth != nil {
		if err = client.Auth(auth); err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}
	}
	if err = client.Mail(from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	for _, t := range to {
		if err = client.Rcpt(t); err != nil {
			return fmt.Errorf("failed to set recipient %s: %w", t, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %w", err)
	}
	if _, err = w.Write(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return w.Close()
}

func allRecipients(msg *Message) []string {
	recipients := make([]string, 0, len(msg.To)+len(msg.Cc)+len(msg.Bcc))
	recipients = append(recipients, msg.To...)
	recipients = append(recipients, msg.Cc...)
	recipients = append(recipients, msg.Bcc...)
	return recipients
}

func buildEmailBody(msg *Message) string {
	// Strip CRLF so user-supplied values cannot inject headers.
	sanitize := func(s string) string {
		return strings.ReplaceAll(strings.ReplaceAll(s, "\r", ""), "\n", "")
	}

	var headers []string
	headers = append(headers, fmt.Sprintf("From: %s", sanitize(msg.From)))
	headers = append(headers, fmt.Sprintf("To: %s", sanitize(strings.Join(msg.To, ", "))))
	if len(msg.Cc) > 0 {
		headers = append(headers, fmt.Sprintf("Cc: %s", sanitize(strings.Join(msg.Cc, ", "))))
	}
	headers = append(headers, fmt.Sprintf("Subject: %s", sanitize(msg.Subject)))

	contentType := "text/plain"
	if msg.ContentType != "" {
		contentType = msg.ContentType
	}
	headers = append(headers, fmt.Sprintf("Content-Type: %s; charset=UTF-8", sanitize(contentType)))

	return fmt.Sprintf("%s\r\n\r\n%s", strings.Join(headers, "\r\n"), msg.Body)
}

func parseEmailAddress(input string) (string, error) {
	addr, err := mail.ParseAddress(input)
	if err != nil {
		return "", err
	}
	return addr.Address, nil
}
