package notify

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

// Pusher delivers a plain-text message to a recipient.
type Pusher interface {
	Push(ctx context.Context, to string, text string) error
}

// LineClient pushes text messages through the LINE Messaging API.
type LineClient struct {
	url   string
	token string
	http  *http.Client
}

const DefaultPushURL = "https://api.line.me/v2/bot/message/push"

func NewLineClient(url string, token string) *LineClient {
	url = strings.TrimSpace(url)
	if url == "" {
		url = DefaultPushURL
	}
	return &LineClient{
		url:   url,
		token: strings.TrimSpace(token),
		http: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *LineClient) Push(ctx context.Context, to string, text string) error {
	if c.token == "" {
		return errors.New("line channel access token not configured")
	}
	if strings.TrimSpace(to) == "" {
		return errors.New("line recipient not configured")
	}
	payload := map[string]any{
		"to": to,
		"messages": []map[string]string{
			{"type": "text", "text": text},
		},
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("line push returned status %d", resp.StatusCode)
	}
	return nil
}

// NoopPusher stands in when LINE credentials are absent (local dev).
type NoopPusher struct{}

func (NoopPusher) Push(context.Context, string, string) error {
	return nil
}
