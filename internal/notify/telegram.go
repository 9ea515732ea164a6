// internal/notify/telegram.go
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/ratelimit"
)

// DefaultTelegramAPI is the Bot API base URL.
const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram sends messages through the Bot API. User ids are Telegram chat ids.
type Telegram struct {
	baseURL string
	token   string
	http    *http.Client
	limiter ratelimit.Limiter
}

// NewTelegram creates a sink. Bot API allows about 30 messages per second.
func NewTelegram(baseURL, token string, timeout time.Duration) *Telegram {
	if baseURL == "" {
		baseURL = DefaultTelegramAPI
	}
	return &Telegram{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		limiter: ratelimit.New(25),
	}
}

func (t *Telegram) Notify(ctx context.Context, userID, message string) error {
	t.limiter.Take()

	form := url.Values{}
	form.Set("chat_id", userID)
	form.Set("text", message)
	form.Set("parse_mode", "HTML")
	form.Set("disable_web_page_preview", "true")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return err
	}
	req.URL.RawQuery = form.Encode()

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, body)
	}
	return nil
}
