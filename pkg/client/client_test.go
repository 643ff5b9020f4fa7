package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/artforge/artforge-client/internal/testutil"
	"github.com/artforge/artforge-client/pkg/api"
)

// setupTestRedis creates a test Redis client, skipping when unavailable.
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // separate DB for tests
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test DB: %v", err)
	}

	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})

	return client
}

// newTestClient wires a client against the mock backend with fast retries.
func newTestClient(t *testing.T, backend *testutil.MockBackend) *Client {
	t.Helper()

	cfg := DefaultConfig(setupTestRedis(t), "artforge-client-test/1.0.0 (dev@example.com)")
	cfg.BaseURL = backend.URL()
	cfg.Retry = RetryConfig{
		MaxAttempts:       4,
		InitialBackoff:    10 * time.Millisecond,
		MaxBackoff:        100 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}

	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func TestNew_Validation(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	tests := []struct {
		name        string
		config      Config
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid config",
			config: Config{
				Redis:     redisClient,
				UserAgent: "TestApp/1.0.0 (test@example.com)",
			},
			expectError: false,
		},
		{
			name: "nil redis",
			config: Config{
				UserAgent: "TestApp/1.0.0",
			},
			expectError: true,
			errorMsg:    "redis client is required",
		},
		{
			name: "empty user agent",
			config: Config{
				Redis: redisClient,
			},
			expectError: true,
			errorMsg:    "user-agent is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.config)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got nil")
				}
				if tt.errorMsg != "" && err.Error() != tt.errorMsg {
					t.Errorf("Error message = %q, want %q", err.Error(), tt.errorMsg)
				}
				return
			}

			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if client == nil {
				t.Error("Client is nil")
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer redisClient.Close()

	cfg := DefaultConfig(redisClient, "TestApp/1.0.0")

	if cfg.BaseURL != DefaultBaseURL {
		t.Errorf("BaseURL = %q, want %q", cfg.BaseURL, DefaultBaseURL)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", cfg.Timeout)
	}
	if cfg.Retry.MaxAttempts != 4 {
		t.Errorf("Retry.MaxAttempts = %d, want 4", cfg.Retry.MaxAttempts)
	}
}

func TestSearchImages(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	items := testutil.Images("img", 3)
	backend.SetResponse("/api/search/images",
		testutil.NewHealthyResponse(testutil.SearchPageBody(items, true, 30)))

	c := newTestClient(t, backend)
	defer c.Close()

	page, err := c.SearchImages(context.Background(), "cat", 1, "public")
	if err != nil {
		t.Fatalf("SearchImages() error = %v", err)
	}

	if len(page.Items) != 3 {
		t.Errorf("Items = %d, want 3", len(page.Items))
	}
	if !page.HasMore || page.Total != 30 {
		t.Errorf("HasMore=%v Total=%d, want true/30", page.HasMore, page.Total)
	}

	if backend.LastQuery["q"] != "cat" || backend.LastQuery["page"] != "1" || backend.LastQuery["filter"] != "public" {
		t.Errorf("query params = %v", backend.LastQuery)
	}
}

func TestSearchImages_PageValidation(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	c := newTestClient(t, backend)
	defer c.Close()

	if _, err := c.SearchImages(context.Background(), "cat", 0, ""); err == nil {
		t.Error("page 0 should be rejected")
	}
	if backend.GetRequestCount() != 0 {
		t.Error("invalid page must not reach the backend")
	}
}

func TestSearchImages_LegacyShape(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	items := testutil.Images("old", 2)
	backend.SetResponse("/api/search/images",
		testutil.NewHealthyResponse(testutil.LegacyPageBody(items, false, 2)))

	c := newTestClient(t, backend)
	defer c.Close()

	page, err := c.SearchImages(context.Background(), "cat", 1, "")
	if err != nil {
		t.Fatalf("SearchImages() error = %v", err)
	}
	if len(page.Items) != 2 || page.HasMore {
		t.Errorf("page = %+v, want 2 items and no more", page)
	}
}

func TestSearchImages_RetriesServerErrors(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	// Three 503s, then success. Must succeed within the 4-attempt budget.
	ok := testutil.NewHealthyResponse(testutil.SearchPageBody(testutil.Images("img", 1), false, 1))
	backend.SetResponseSequence("/api/search/images",
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		testutil.NewServerErrorResponse(),
		ok,
	)

	c := newTestClient(t, backend)
	defer c.Close()

	page, err := c.SearchImages(context.Background(), "cat", 1, "")
	if err != nil {
		t.Fatalf("SearchImages() error = %v", err)
	}
	if len(page.Items) != 1 {
		t.Errorf("Items = %d, want 1", len(page.Items))
	}
	if backend.GetRequestCount() != 4 {
		t.Errorf("requests = %d, want 4", backend.GetRequestCount())
	}
}

func TestSearchImages_ExhaustsRetries(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	backend.SetResponse("/api/search/images", testutil.NewServerErrorResponse())

	c := newTestClient(t, backend)
	defer c.Close()

	_, err := c.SearchImages(context.Background(), "cat", 1, "")
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("error = %v, want ErrRetryExhausted", err)
	}
	if backend.GetRequestCount() != 4 {
		t.Errorf("requests = %d, want exactly MaxAttempts (4)", backend.GetRequestCount())
	}
}

func TestSearchImages_ClientErrorNotRetried(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	backend.SetResponse("/api/search/images", testutil.NewNotFoundResponse())

	c := newTestClient(t, backend)
	defer c.Close()

	_, err := c.SearchImages(context.Background(), "cat", 1, "")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 404 || apiErr.ErrorClass != ErrorClassClient {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if backend.GetRequestCount() != 1 {
		t.Errorf("requests = %d, want 1 (no retry on 404)", backend.GetRequestCount())
	}
}

func TestSearchImages_HonorsRetryAfter(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	ok := testutil.NewHealthyResponse(testutil.SearchPageBody(nil, false, 0))
	backend.SetResponseSequence("/api/search/images",
		testutil.NewRateLimitResponse(1),
		ok,
	)

	c := newTestClient(t, backend)
	defer c.Close()

	start := time.Now()
	_, err := c.SearchImages(context.Background(), "cat", 1, "")
	if err != nil {
		t.Fatalf("SearchImages() error = %v", err)
	}

	// The 10ms backoff schedule must have been replaced by Retry-After: 1.
	if elapsed := time.Since(start); elapsed < 900*time.Millisecond {
		t.Errorf("elapsed = %v, want >= ~1s from Retry-After", elapsed)
	}
	if backend.GetRequestCount() != 2 {
		t.Errorf("requests = %d, want 2", backend.GetRequestCount())
	}
}

func TestGet_ServesFromCacheVia304(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	body := testutil.SearchPageBody(testutil.Images("img", 1), false, 1)
	etag := `"page-v1"`
	backend.SetHandler("/api/feed/images", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "100")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.Header().Set("Expires", time.Now().Add(5*time.Minute).Format(http.TimeFormat))
		if r.Header.Get("If-None-Match") == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	})

	c := newTestClient(t, backend)
	defer c.Close()

	ctx := context.Background()
	query := url.Values{"page": {"1"}}

	// First request fills the cache.
	resp1, err := c.Get(ctx, "/api/feed/images", query)
	if err != nil {
		t.Fatalf("first Get() error = %v", err)
	}
	first, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()

	// Second request goes conditional and is served from cache.
	resp2, err := c.Get(ctx, "/api/feed/images", query)
	if err != nil {
		t.Fatalf("second Get() error = %v", err)
	}
	second, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if string(first) != string(second) {
		t.Error("cached body differs from original")
	}
	if backend.GetConditionalCount() != 1 {
		t.Errorf("conditional requests = %d, want 1", backend.GetConditionalCount())
	}
}

func TestTokenSource_SetsAuthorization(t *testing.T) {
	backend := testutil.NewMockBackend()
	defer backend.Close()

	c := newTestClient(t, backend)
	defer c.Close()

	c.config.TokenSource = func(ctx context.Context) (string, error) {
		return "tok-123", nil
	}

	if _, err := c.GetProfile(context.Background()); err != nil {
		// Default handler returns an items envelope; profile decode may
		// fail, the auth header is what matters here.
		if !errors.Is(err, api.ErrUnknownShape) && !strings.Contains(err.Error(), "decode data") {
			t.Fatalf("GetProfile() error = %v", err)
		}
	}

	if got := backend.LastRequestHeader.Get("Authorization"); got != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer tok-123")
	}
}
