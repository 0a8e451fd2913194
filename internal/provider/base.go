package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/medfuse/medfuse/internal/domain"
)

const (
	// DefaultMaxResponseBytes caps upstream response bodies (50 MB).
	DefaultMaxResponseBytes int64 = 50 * 1024 * 1024

	// Retry policy for transient rate-limit responses.
	maxRetries    = 2
	baseRetryWait = 700 * time.Millisecond
	maxRetryWait  = 4 * time.Second
)

// BaseClient is a rate-limited HTTP client shared by the source providers.
// The limiter is per-source; all requests to one upstream go through one
// BaseClient so concurrent fetches share the request budget.
type BaseClient struct {
	BaseURL    string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
	MaxBytes   int64
}

// NewBaseClient creates a base client with the given per-second request
// budget.
func NewBaseClient(baseURL string, rps float64, timeout time.Duration) *BaseClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &BaseClient{
		BaseURL:    baseURL,
		MaxBytes:   DefaultMaxResponseBytes,
		Limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// DoGet performs a rate-limited GET with bounded retry on HTTP 429 and a
// response size guard. Returns the response body.
func (c *BaseClient) DoGet(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u, err := url.JoinPath(c.BaseURL, endpoint)
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}
	fullURL := u + "?" + params.Encode()

	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait for a limiter token; respects context cancellation.
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.HTTPClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("%w: executing request: %w", domain.ErrProviderUnavailable, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			if attempt >= maxRetries {
				resp.Body.Close()
				return nil, fmt.Errorf("%w: HTTP 429 after %d retries", domain.ErrRateLimited, maxRetries)
			}

			retryAfter := retryAfterDuration(resp.Header.Get("Retry-After"))
			resp.Body.Close()
			if retryAfter <= 0 {
				retryAfter = baseRetryWait * time.Duration(1<<attempt)
				if retryAfter > maxRetryWait {
					retryAfter = maxRetryWait
				}
			}
			if err := sleepWithContext(ctx, retryAfter); err != nil {
				return nil, fmt.Errorf("rate limit retry canceled: %w", err)
			}
			continue
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: upstream returned HTTP 404 for %s", domain.ErrNotFound, endpoint)
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: upstream returned HTTP %d for %s",
				domain.ErrProviderUnavailable, resp.StatusCode, endpoint)
		}

		// Read up to MaxBytes+1 to detect oversized responses.
		r := io.LimitReader(resp.Body, c.MaxBytes+1)
		body, err := io.ReadAll(r)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if int64(len(body)) > c.MaxBytes {
			return nil, fmt.Errorf("response exceeds maximum size of %d bytes", c.MaxBytes)
		}

		return body, nil
	}

	return nil, fmt.Errorf("unreachable request loop")
}

func retryAfterDuration(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}

	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
		return 0
	}

	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}

	return 0
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
