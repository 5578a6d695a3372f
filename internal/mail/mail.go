package mail

import (
	"context"

	"go.uber.org/zap"
)

// Message is a plain-text email.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender delivers email. Any returned error means the message was not sent.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender records deliveries in the log instead of sending them. The body is
// never logged since it may carry a reset credential.
type LogSender struct {
	logger *zap.Logger
}

// NewLogSender builds a development sender.
func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Info("mail delivery skipped; SMTP not configured",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject))
	return nil
}
