package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramAPI is the public Bot API endpoint.
const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram sends messages through the Bot API. It serves both the group
// broadcast and per-user direct messages.
type Telegram struct {
	baseURL     string
	token       string
	groupChatID int64
	httpClient  *http.Client
}

// NewTelegram builds a client. A zero groupChatID disables group messages.
func NewTelegram(baseURL, token string, groupChatID int64, httpClient *http.Client) *Telegram {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Telegram{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		groupChatID: groupChatID,
		httpClient:  httpClient,
	}
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendGroupMessage posts to the configured team chat.
func (t *Telegram) SendGroupMessage(ctx context.Context, text string) error {
	if t.groupChatID == 0 {
		return errors.New("telegram group chat id not configured")
	}
	return t.send(ctx, t.groupChatID, text)
}

// SendDirectMessage posts to a single user's chat.
func (t *Telegram) SendDirectMessage(ctx context.Context, chatID int64, text string) error {
	return t.send(ctx, chatID, text)
}

func (t *Telegram) send(ctx context.Context, chatID int64, text string) error {
	payload, err := json.Marshal(sendMessageRequest{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal telegram message: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var parsed apiResponse
	_ = json.Unmarshal(body, &parsed)
	if resp.StatusCode != http.StatusOK || !parsed.OK {
		if parsed.Description != "" {
			return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, parsed.Description)
		}
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}
	return nil
}
