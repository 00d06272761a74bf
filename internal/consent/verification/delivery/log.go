package delivery

import (
	"context"
	"log/slog"

	"consentd/pkg/platform/privacy"
)

// LogSender stands in for the gateway in development. It logs that a message
// was handed over with the destination masked and never logs the body.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "notification handed to log sender",
		"consent_id", msg.ConsentID,
		"channel", msg.Channel,
		"destination", maskDestination(msg),
	)
	return nil
}

func maskDestination(msg Message) string {
	switch msg.Channel {
	case ChannelEmail:
		return privacy.MaskEmail(msg.Destination)
	case ChannelSMS:
		return privacy.MaskPhone(msg.Destination)
	default:
		return privacy.MaskTail(msg.Destination, 4)
	}
}
