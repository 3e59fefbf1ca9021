// Package email delivers reset, activation and invitation links.
package email

import (
	"context"

	"github.com/dropDatabas3/gatehouse/internal/observability/logger"
)

// Message is one outbound email. Either body may be empty.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// LogSender records that a message was dropped instead of delivering it. It
// is the fallback when no SMTP host is configured. Bodies carry live tokens
// and are never logged.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, m Message) error {
	logger.From(ctx).Warn("email not delivered, no smtp configured",
		logger.Component("email"),
		logger.Email(m.To),
		logger.String("subject", m.Subject),
	)
	return nil
}
