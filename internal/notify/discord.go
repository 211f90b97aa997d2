package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DiscordSender posts to a webhook. Discord answers 204 on success.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	body, err := json.Marshal(map[string]string{
		"content": fmt.Sprintf("**%s**\n```\n%s\n```", title, message),
	})
	if err != nil {
		return fmt.Errorf("discord: marshal: %w", err)
	}
	return postJSON(ctx, d.client, "discord", d.webhookURL, body)
}

func (d *DiscordSender) Name() string { return "discord" }
