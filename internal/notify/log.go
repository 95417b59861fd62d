package notify

import (
	"context"
	"log/slog"
)

var _ Sender = &LogSender{}

// LogSender logs messages instead of sending them, for local dev.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (l *LogSender) Send(ctx context.Context, msg Message) error {
	attachments := make([]string, 0, len(msg.Inline))
	for _, a := range msg.Inline {
		attachments = append(attachments, a.Filename)
	}

	l.logger.InfoContext(ctx, "email that would be sent",
		slog.String("from", msg.FromAddress),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.Int("html_bytes", len(msg.HTMLBody)),
		slog.Any("attachments", attachments),
	)
	return nil
}
