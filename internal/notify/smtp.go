package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"regexp"
	"strings"
	"time"

	"github.com/systmms/secretcron/internal/secure"
)

// headerPattern matches common email header injection patterns.
var headerPattern = regexp.MustCompile(`(?i)\b(bcc|cc|to|from|subject|reply-to|x-[a-z0-9-]+)\s*:`)

// SMTPConfig holds SMTP relay configuration.
type SMTPConfig struct {
	Host string
	Port int
	// Username enables PLAIN auth when set.
	Username string
	Password *secure.Credential
}

// SMTPSendFunc is the function signature for sending emails via SMTP.
type SMTPSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends plain-text mail through an SMTP relay.
type SMTPMailer struct {
	config     SMTPConfig
	smtpSender SMTPSendFunc
	now        func() time.Time
}

// NewSMTPMailer creates a mailer for the given relay.
func NewSMTPMailer(config SMTPConfig) *SMTPMailer {
	return &SMTPMailer{
		config:     config,
		smtpSender: smtp.SendMail,
		now:        time.Now,
	}
}

// NewSMTPMailerWithSender is NewSMTPMailer with the transport replaced.
func NewSMTPMailerWithSender(config SMTPConfig, send SMTPSendFunc) *SMTPMailer {
	m := NewSMTPMailer(config)
	m.smtpSender = send
	return m
}

// Validate checks the relay configuration.
func (m *SMTPMailer) Validate() error {
	if m.config.Host == "" {
		return fmt.Errorf("SMTP host is required")
	}
	if m.config.Port <= 0 || m.config.Port > 65535 {
		return fmt.Errorf("SMTP port %d is out of range", m.config.Port)
	}
	return nil
}

// Send delivers msg. net/smtp has no context support, so ctx is only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.Validate(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)
	body := m.build(msg)

	err := m.config.Password.Use(func(password []byte) error {
		var auth smtp.Auth
		if m.config.Username != "" {
			auth = smtp.PlainAuth("", m.config.Username, string(password), m.config.Host)
		}
		return m.smtpSender(addr, auth, msg.From, []string{msg.To}, body)
	})
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) []byte {
	var buf bytes.Buffer
	buf.WriteString(fmt.Sprintf("From: %s\r\n", sanitizeHeader(msg.From)))
	buf.WriteString(fmt.Sprintf("To: %s\r\n", sanitizeHeader(msg.To)))
	buf.WriteString(fmt.Sprintf("Subject: %s\r\n", sanitizeHeader(msg.Subject)))
	buf.WriteString(fmt.Sprintf("Date: %s\r\n", m.now().Format(time.RFC1123Z)))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	body := strings.ReplaceAll(msg.Body, "\r\n", "\n")
	buf.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	buf.WriteString("\r\n")
	return buf.Bytes()
}

// sanitizeHeader strips line breaks and header-like prefixes from a header value.
func sanitizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", " ")
	return headerPattern.ReplaceAllString(s, "")
}
