package channels

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"
)

// Slack broadcasts group notifications to a single channel.
type Slack struct {
	client  *slack.Client
	channel string
}

// NewSlack builds a sender for channel. apiURL overrides the Slack endpoint
// and must end with a slash; empty uses the public API.
func NewSlack(botToken, channel, apiURL string, httpClient *http.Client) *Slack {
	options := []slack.Option{slack.OptionDebug(false)}
	if apiURL != "" {
		options = append(options, slack.OptionAPIURL(apiURL))
	}
	if httpClient != nil {
		options = append(options, slack.OptionHTTPClient(httpClient))
	}
	return &Slack{client: slack.New(botToken, options...), channel: channel}
}

// SendGroupMessage posts text to the configured channel.
func (s *Slack) SendGroupMessage(ctx context.Context, text string) error {
	if s.channel == "" {
		return errors.New("slack channel not configured")
	}
	if _, _, err := s.client.PostMessageContext(ctx, s.channel, slack.MsgOptionText(text, false)); err != nil {
		return fmt.Errorf("slack post message: %w", err)
	}
	return nil
}
