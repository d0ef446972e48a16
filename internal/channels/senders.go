package channels

import (
	"github.com/spec-kit/request-desk/internal/config"
	"github.com/spec-kit/request-desk/internal/service"
)

// Senders holds the outbound channels enabled by configuration. A nil
// field disables that channel.
type Senders struct {
	Group  service.GroupSender
	Direct service.DirectSender
	Email  service.EmailSender
}

// FromConfig builds the senders for cfg.
func FromConfig(cfg config.NotificationConfig) Senders {
	var s Senders

	var tg *Telegram
	if cfg.Telegram.BotToken != "" {
		tg = NewTelegram(cfg.Telegram.APIBaseURL, cfg.Telegram.BotToken, cfg.Telegram.GroupChatID, nil)
		s.Direct = tg
	}

	switch cfg.GroupProvider {
	case "telegram":
		if tg != nil && cfg.Telegram.GroupChatID != 0 {
			s.Group = tg
		}
	case "slack":
		if cfg.Slack.BotToken != "" && cfg.Slack.Channel != "" {
			s.Group = NewSlack(cfg.Slack.BotToken, cfg.Slack.Channel, cfg.Slack.APIURL, nil)
		}
	}

	if cfg.SMTP.Enabled && cfg.SMTP.Host != "" {
		s.Email = NewEmail(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.Username, cfg.SMTP.Password, cfg.SMTP.From)
	}
	return s
}
