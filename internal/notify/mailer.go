// Package notify delivers refresh notifications by email.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"strings"

	"github.com/systmms/secretcron/internal/logging"
	"github.com/systmms/secretcron/internal/metrics"
)

// Message is one plain-text email.
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// ValidateAddress accepts a bare addr-spec such as ops@example.com. Display
// names and lists are rejected.
func ValidateAddress(addr string) error {
	if strings.TrimSpace(addr) == "" {
		return fmt.Errorf("email address is empty")
	}
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("invalid email address %q: %w", addr, err)
	}
	if parsed.Address != addr || parsed.Name != "" {
		return fmt.Errorf("invalid email address %q: only a bare address is accepted", addr)
	}
	at := strings.LastIndex(addr, "@")
	if at < 1 || !strings.Contains(addr[at+1:], ".") {
		return fmt.Errorf("invalid email address %q: domain must be fully qualified", addr)
	}
	return nil
}

// Notifier sends operator notifications to one recipient. An invalid recipient
// is logged and the email skipped; Notify then returns sent=false and no error.
type Notifier struct {
	mailer    Mailer
	from      string
	recipient string
	out       io.Writer
	logger    *logging.Logger
	metrics   *metrics.Metrics
}

// NotifierOption configures a Notifier.
type NotifierOption func(*Notifier)

// WithSender sets the From address. It defaults to the recipient.
func WithSender(from string) NotifierOption {
	return func(n *Notifier) {
		if from != "" {
			n.from = from
		}
	}
}

// WithOutput sets where "Email sent" lines are printed.
func WithOutput(w io.Writer) NotifierOption {
	return func(n *Notifier) {
		if w != nil {
			n.out = w
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) NotifierOption {
	return func(n *Notifier) {
		if l != nil {
			n.logger = l
		}
	}
}

// WithMetrics records notification outcomes.
func WithMetrics(m *metrics.Metrics) NotifierOption {
	return func(n *Notifier) {
		n.metrics = m
	}
}

// NewNotifier returns a notifier for recipient.
func NewNotifier(mailer Mailer, recipient string, opts ...NotifierOption) *Notifier {
	n := &Notifier{
		mailer:    mailer,
		from:      recipient,
		recipient: recipient,
		out:       io.Discard,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Recipient returns the configured recipient.
func (n *Notifier) Recipient() string {
	return n.recipient
}

// Notify sends subject and body to the recipient.
func (n *Notifier) Notify(ctx context.Context, subject, body string) (bool, error) {
	if err := ValidateAddress(n.recipient); err != nil {
		n.logger.Warn("Skipping email %q: %v", subject, err)
		n.metrics.RecordNotification("skipped")
		return false, nil
	}
	if err := ValidateAddress(n.from); err != nil {
		n.logger.Warn("Skipping email %q: sender %v", subject, err)
		n.metrics.RecordNotification("skipped")
		return false, nil
	}

	msg := Message{
		From:    n.from,
		To:      n.recipient,
		Subject: subject,
		Body:    body,
	}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.metrics.RecordNotification("error")
		return false, err
	}

	n.metrics.RecordNotification("sent")
	fmt.Fprintf(n.out, "Email sent: %s\n", subject)
	return true, nil
}
