package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// DefaultDiscordAPI is the Discord REST API base URL.
	DefaultDiscordAPI = "https://discord.com/api/v10"
	maxMessageRunes   = 2000
)

// DiscordSink posts messages to one Discord channel through the bot REST API.
// Sends are paced by a token bucket so bursts of new offers stay under the
// channel rate limit.
type DiscordSink struct {
	baseURL   string
	token     string
	channelID string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewDiscordSink creates a sink for channelID. ratePerSec <= 0 disables pacing.
func NewDiscordSink(baseURL, token, channelID string, ratePerSec float64) *DiscordSink {
	if baseURL == "" {
		baseURL = DefaultDiscordAPI
	}
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &DiscordSink{
		baseURL:   strings.TrimRight(baseURL, "/"),
		token:     token,
		channelID: channelID,
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(limit, 5),
	}
}

type discordMessage struct {
	Content string `json:"content"`
}

// Send posts text to the channel. Messages over Discord's length limit are truncated.
func (d *DiscordSink) Send(ctx context.Context, text string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return &DeliveryError{Err: fmt.Errorf("rate limiter: %w", err)}
	}

	body, err := json.Marshal(discordMessage{Content: truncateRunes(text, maxMessageRunes)})
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("marshal message: %w", err)}
	}

	url := fmt.Sprintf("%s/channels/%s/messages", d.baseURL, d.channelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bot "+d.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &DeliveryError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	return nil
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
