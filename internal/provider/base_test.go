package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/medfuse/medfuse/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *BaseClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBaseClient(srv.URL, 1000, 5*time.Second)
}

func TestDoGet_Success(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "aspirin" {
			t.Errorf("missing query param, got %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"ok":true}`))
	})

	body, err := c.DoGet(context.Background(), "search", url.Values{"q": {"aspirin"}})
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestDoGet_RetriesOn429(t *testing.T) {
	attempts := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte("ok"))
	})

	body, err := c.DoGet(context.Background(), "search", url.Values{})
	if err != nil {
		t.Fatalf("DoGet: %v", err)
	}
	if string(body) != "ok" {
		t.Errorf("unexpected body: %s", body)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDoGet_RateLimitedAfterRetriesExhausted(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.DoGet(context.Background(), "search", url.Values{})
	if !errors.Is(err, domain.ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}
}

func TestDoGet_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := c.DoGet(context.Background(), "search", url.Values{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDoGet_ServerErrorIsProviderUnavailable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.DoGet(context.Background(), "search", url.Values{})
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Errorf("expected ErrProviderUnavailable, got %v", err)
	}
}

func TestDoGet_OversizedResponseRejected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 64))
	})
	c.MaxBytes = 32

	_, err := c.DoGet(context.Background(), "search", url.Values{})
	if err == nil {
		t.Fatal("expected size guard error")
	}
}

func TestDoGet_CanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.DoGet(ctx, "search", url.Values{}); err == nil {
		t.Error("expected error on canceled context")
	}
}

func TestRetryAfterDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{"0", 0},
		{"-5", 0},
		{"garbage", 0},
	}
	for _, tt := range tests {
		if got := retryAfterDuration(tt.in); got != tt.want {
			t.Errorf("retryAfterDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	// HTTP-date in the future yields a positive wait.
	future := time.Now().Add(30 * time.Second).UTC().Format(http.TimeFormat)
	if got := retryAfterDuration(future); got <= 0 || got > 31*time.Second {
		t.Errorf("future HTTP-date: got %v", got)
	}
	past := time.Now().Add(-time.Minute).UTC().Format(http.TimeFormat)
	if got := retryAfterDuration(past); got != 0 {
		t.Errorf("past HTTP-date must yield 0, got %v", got)
	}
}
