//go:build integration

package integration

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/artforge/artforge-client/internal/testutil"
	"github.com/artforge/artforge-client/pkg/client"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newClient(t *testing.T, redisClient *redis.Client, backend *testutil.MockBackend) *client.Client {
	t.Helper()

	cfg := client.DefaultConfig(redisClient, "artforge-integration/1.0.0 (dev@example.com)")
	cfg.BaseURL = backend.URL()

	c, err := client.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

// TestFullRequestFlow exercises the complete flow: rate limit check →
// cache miss → backend request → cache store → conditional revalidation.
func TestFullRequestFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewMockBackend()
	defer backend.Close()

	body := testutil.SearchPageBody(testutil.Images("img", 3), false, 3)
	backend.SetResponse("/api/feed/images", testutil.NewCacheableResponse(body, `"feed-v1"`))

	c := newClient(t, redisClient, backend)
	ctx := context.Background()

	t.Log("Request 1: full flow - cache miss")
	resp1, err := c.Get(ctx, "/api/feed/images", nil)
	if err != nil {
		t.Fatalf("Request 1 failed: %v", err)
	}
	body1, _ := io.ReadAll(resp1.Body)
	resp1.Body.Close()

	if resp1.StatusCode != http.StatusOK {
		t.Errorf("Request 1 status = %d, want %d", resp1.StatusCode, http.StatusOK)
	}
	if string(body1) != body {
		t.Errorf("Request 1 body = %s, want backend body", body1)
	}
	if backend.GetRequestCount() != 1 {
		t.Errorf("After request 1: backend requests = %d, want 1", backend.GetRequestCount())
	}

	// Wait for cache write
	time.Sleep(100 * time.Millisecond)

	t.Log("Request 2: cache hit with conditional request")
	resp2, err := c.Get(ctx, "/api/feed/images", nil)
	if err != nil {
		t.Fatalf("Request 2 failed: %v", err)
	}
	body2, _ := io.ReadAll(resp2.Body)
	resp2.Body.Close()

	if string(body2) != body {
		t.Errorf("Request 2 body = %s, want cached body", body2)
	}
	if backend.GetRequestCount() != 2 {
		t.Errorf("After request 2: backend requests = %d, want 2", backend.GetRequestCount())
	}
	if backend.GetConditionalCount() != 1 {
		t.Errorf("Conditional requests = %d, want 1", backend.GetConditionalCount())
	}
}

// TestSearchPagination exercises the typed search endpoint against both
// response shapes with a real cache behind it.
func TestSearchPagination(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewMockBackend()
	defer backend.Close()

	backend.SetResponse("/api/search/images",
		testutil.NewHealthyResponse(testutil.SearchPageBody(testutil.Images("img", 10), true, 25)))

	c := newClient(t, redisClient, backend)

	page, err := c.SearchImages(context.Background(), "castle", 1, "public")
	if err != nil {
		t.Fatalf("SearchImages failed: %v", err)
	}
	if len(page.Items) != 10 || !page.HasMore || page.Total != 25 {
		t.Errorf("page = %d items, HasMore=%v, Total=%d; want 10/true/25",
			len(page.Items), page.HasMore, page.Total)
	}

	backend.SetResponse("/api/search/images",
		testutil.NewHealthyResponse(testutil.LegacyPageBody(testutil.Images("old", 5), false, 5)))

	page, err = c.SearchImages(context.Background(), "castle", 3, "public")
	if err != nil {
		t.Fatalf("SearchImages (legacy shape) failed: %v", err)
	}
	if len(page.Items) != 5 || page.HasMore {
		t.Errorf("legacy page = %d items, HasMore=%v; want 5/false", len(page.Items), page.HasMore)
	}
}

// TestRateLimitBlock verifies that a critical rate-limit state stored in
// Redis blocks the next request before it reaches the backend.
func TestRateLimitBlock(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewMockBackend()
	defer backend.Close()

	// Drive the tracker into the critical band via response headers.
	backend.SetHandler("/api/search/images", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-RateLimit-Remaining", "2")
		w.Header().Set("X-RateLimit-Reset", "60")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(testutil.SearchPageBody(nil, false, 0)))
	})

	c := newClient(t, redisClient, backend)
	ctx := context.Background()

	if _, err := c.SearchImages(ctx, "cat", 1, ""); err != nil {
		t.Fatalf("priming request failed: %v", err)
	}

	_, err := c.SearchImages(ctx, "cat", 2, "")
	if err == nil {
		t.Fatal("expected critical rate limit to block the request")
	}
	if backend.GetRequestCount() != 1 {
		t.Errorf("backend requests = %d, want 1 (second request blocked client-side)", backend.GetRequestCount())
	}
}
