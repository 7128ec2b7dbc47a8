package slack

import "context"

// Client posts a plain-text message to a channel. Run failures are the only
// messages sent today.
type Client interface {
	SendMessage(ctx context.Context, channel, message string) error
}
