package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"simflow/internal/logger"
)

type webhookClient struct {
	url    string
	http   *http.Client
	logger logger.Logger
}

// NewWebhookClient posts messages to a Slack incoming webhook.
func NewWebhookClient(url string, log logger.Logger) Client {
	return &webhookClient{
		url:    url,
		http:   &http.Client{Timeout: 10 * time.Second},
		logger: log.With(logger.String("component", "slack_webhook")),
	}
}

type webhookPayload struct {
	Channel string `json:"channel,omitempty"`
	Text    string `json:"text"`
}

func (c *webhookClient) SendMessage(ctx context.Context, channel, message string) error {
	body, err := json.Marshal(webhookPayload{Channel: channel, Text: message})
	if err != nil {
		return fmt.Errorf("failed to marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("failed to post slack message", logger.Error(err))
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("slack webhook returned %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
