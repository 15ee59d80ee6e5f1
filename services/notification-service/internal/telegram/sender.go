package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, chatID string, text string) error
	ProviderID() string
}

// BotSender pushes messages through the Telegram Bot API sendMessage call.
type BotSender struct {
	apiURL string
	http   *http.Client
}

func NewBotSender(botToken string) *BotSender {
	return &BotSender{
		apiURL: fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", strings.TrimSpace(botToken)),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (s *BotSender) ProviderID() string {
	return "telegram-bot"
}

func (s *BotSender) Send(ctx context.Context, chatID string, text string) error {
	payload := map[string]string{
		"chat_id": chatID,
		"text":    text,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.New("telegram api returned non-2xx")
	}
	return nil
}

type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) ProviderID() string {
	return "telegram-noop"
}

func (s *NoopSender) Send(_ context.Context, _ string, _ string) error {
	return nil
}
