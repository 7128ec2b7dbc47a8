package slack

import (
	"context"

	"simflow/internal/logger"
)

type logClient struct {
	logger logger.Logger
}

// NewLogClient returns a client that only logs messages. It is used when no
// webhook is configured.
func NewLogClient(log logger.Logger) Client {
	return &logClient{
		logger: log.With(logger.String("component", "slack_log")),
	}
}

func (m *logClient) SendMessage(ctx context.Context, channel, message string) error {
	m.logger.Info("slack message",
		logger.String("channel", channel),
		logger.String("message", message),
	)
	return nil
}
