package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const telegramAPI = "https://api.telegram.org"

// TelegramSender posts through the Bot API sendMessage method.
type TelegramSender struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

func NewTelegramSender(token, chatID string) *TelegramSender {
	return &TelegramSender{
		baseURL: telegramAPI,
		token:   token,
		chatID:  chatID,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       fmt.Sprintf("*%s*\n%s", title, message),
		"parse_mode": "Markdown",
	})
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	return postJSON(ctx, t.client, "telegram", url, body)
}

func (t *TelegramSender) Name() string { return "telegram" }

// postJSON posts body and treats any non-2xx reply as an error carrying the
// first KiB of the response.
func postJSON(ctx context.Context, client *http.Client, name, url string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%s: new request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s: status %d: %s", name, resp.StatusCode, snippet)
	}
	return nil
}
