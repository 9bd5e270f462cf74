// Package notify delivers subscriber notifications for newly cataloged articles.
//
// Delivery goes through a Sender. The log sender is the fallback when no
// mail transport is configured; the SMTP and Kafka senders deliver directly
// or hand the message to a downstream mailer.
package notify

import (
	"context"

	"github.com/rs/zerolog"
)

// Sender delivers one notification.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, to, subject, body string) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, to, subject, body string) error {
	return f(ctx, to, subject, body)
}

// LogSender records notifications in the log instead of delivering them.
type LogSender struct {
	logger zerolog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "log-sender").Logger()}
}

// Send logs the notification and never fails.
func (s *LogSender) Send(_ context.Context, to, subject, _ string) error {
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Msg("notification not delivered: no mail transport configured")
	return nil
}
