// internal/marketdata/http.go
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/ratelimit"
)

const defaultHTTPTimeout = 10 * time.Second

// apiClient is a JSON-over-HTTP client with a client-side rate limit shared
// by every caller of the same upstream.
type apiClient struct {
	baseURL string
	http    *http.Client
	limiter ratelimit.Limiter
}

func newAPIClient(baseURL string, perSecond int, timeout time.Duration) *apiClient {
	if perSecond <= 0 {
		perSecond = 5
	}
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &apiClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: ratelimit.New(perSecond),
	}
}

// getJSON выполняет GET запрос с учетом rate limit и декодирует ответ в dst.
func (c *apiClient) getJSON(ctx context.Context, path string, dst any) error {
	c.limiter.Take()
	if err := ctx.Err(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
