// Package client provides the core Artforge HTTP client with rate
// limiting, response caching, retry, and error classification.
package client

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/artforge/artforge-client/pkg/cache"
	"github.com/artforge/artforge-client/pkg/ratelimit"
)

// DefaultBaseURL is the production Artforge API endpoint.
const DefaultBaseURL = "https://api.artforge.io"

// Prometheus metrics for request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artforge_requests_total",
		Help: "Total API requests by endpoint and status",
	}, []string{"endpoint", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "artforge_request_duration_seconds",
		Help:    "API request duration in seconds by endpoint",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"endpoint"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artforge_errors_total",
		Help: "Total API errors by class",
	}, []string{"class"})
)

// Client is the Artforge API client.
type Client struct {
	httpClient  *http.Client
	redis       *redis.Client
	rateLimiter *ratelimit.Tracker
	cache       *cache.Manager
	config      Config
	logger      zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Redis client for the shared response cache and rate limit state.
	Redis *redis.Client

	// BaseURL of the backend; defaults to DefaultBaseURL.
	BaseURL string

	// UserAgent header, required.
	// Format: "AppName/Version (contact@example.com)"
	UserAgent string

	// TokenSource supplies the bearer token for authenticated endpoints.
	// Nil means unauthenticated requests only.
	TokenSource func(ctx context.Context) (string, error)

	// Timeout per HTTP request.
	Timeout time.Duration

	// Retry controls the backoff schedule for transient failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(redisClient *redis.Client, userAgent string) Config {
	return Config{
		Redis:     redisClient,
		BaseURL:   DefaultBaseURL,
		UserAgent: userAgent,
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// New creates a new Artforge client.
func New(cfg Config) (*Client, error) {
	if cfg.Redis == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("user-agent is required")
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	logger := log.With().Str("component", "gallery-client").Logger()

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		redis:       cfg.Redis,
		rateLimiter: ratelimit.NewTracker(cfg.Redis, logger),
		cache:       cache.NewManager(cfg.Redis),
		config:      cfg,
		logger:      logger,
	}, nil
}

// Get performs a cached GET request against an API path.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, query, nil)
}

// do orchestrates one API call: rate-limit gate, cache lookup with
// conditional request, retried execution, rate-limit header tracking and
// cache fill. A fresh http.Request is built per attempt so request
// bodies survive retries.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(path).Observe(time.Since(startTime).Seconds())
	}()

	allowed, err := c.rateLimiter.ShouldAllowRequest(ctx)
	if err != nil {
		c.logger.Error().Err(err).Msg("Rate limit check failed")
		return nil, fmt.Errorf("rate limit check: %w", err)
	}
	if !allowed {
		c.logger.Warn().
			Str("endpoint", path).
			Msg("Request blocked by rate limiter")
		requestsTotal.WithLabelValues(path, "rate_limited").Inc()
		return nil, ErrRateLimitCritical
	}

	// Only GETs go through the response cache.
	var cachedEntry *cache.Entry
	var cacheKey cache.Key
	if method == http.MethodGet {
		cacheKey = cache.Key{Endpoint: path, Query: query}
		cachedEntry, err = c.cache.Get(ctx, cacheKey)
		if err != nil && err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Str("endpoint", path).Msg("Cache get error")
			cachedEntry = nil
		}
	}

	c.logger.Debug().
		Str("endpoint", path).
		Str("method", method).
		Msg("Executing API request")

	var resp *http.Response
	retryErr := retryWithBackoff(ctx, c.logger, c.config.Retry, func() error {
		req, err := c.newRequest(ctx, method, path, query, body)
		if err != nil {
			return &APIError{ErrorClass: ErrorClassClient, Message: "build request", Err: err}
		}

		if cachedEntry != nil && cache.ShouldMakeConditionalRequest(cachedEntry) {
			cache.AddConditionalHeaders(req, cachedEntry)
			cache.ConditionalRequestsSent.Inc()
		}

		r, reqErr := c.httpClient.Do(req)
		if reqErr != nil {
			c.logger.Error().Err(reqErr).Str("endpoint", path).Msg("HTTP request failed")
			errorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			requestsTotal.WithLabelValues(path, "network_error").Inc()
			return reqErr
		}

		if err := c.rateLimiter.UpdateFromHeaders(ctx, r.Header); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to update rate limit from headers")
		}

		// 304 is a success; the cached body gets served below.
		if r.StatusCode == http.StatusNotModified {
			resp = r
			return nil
		}

		if r.StatusCode >= 400 {
			errClass := classifyStatus(r.StatusCode)
			errorsTotal.WithLabelValues(string(errClass)).Inc()
			requestsTotal.WithLabelValues(path, fmt.Sprintf("%d", r.StatusCode)).Inc()

			apiErr := &APIError{
				StatusCode: r.StatusCode,
				ErrorClass: errClass,
				Message:    r.Status,
			}
			if r.StatusCode == http.StatusTooManyRequests {
				apiErr.RetryAfter = parseRetryAfter(r.Header)
			}

			c.logger.Warn().
				Str("endpoint", path).
				Int("status", r.StatusCode).
				Str("error_class", string(errClass)).
				Msg("API request error")

			r.Body.Close()
			return apiErr
		}

		requestsTotal.WithLabelValues(path, fmt.Sprintf("%d", r.StatusCode)).Inc()
		resp = r
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	if resp.StatusCode == http.StatusNotModified {
		resp.Body.Close()
		cache.NotModifiedResponses.Inc()

		if cachedEntry == nil {
			// Server sent 304 without us asking; nothing to serve.
			return nil, &APIError{
				StatusCode: http.StatusNotModified,
				ErrorClass: ErrorClassServer,
				Message:    "unexpected 304 without cached entry",
			}
		}

		c.logger.Debug().Str("endpoint", path).Msg("304 Not Modified - using cache")
		if expiresStr := resp.Header.Get("Expires"); expiresStr != "" {
			if newExpires, err := http.ParseTime(expiresStr); err == nil {
				if err := c.cache.UpdateTTL(ctx, cacheKey, newExpires); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update cache TTL")
				}
			}
		}
		return cache.EntryToResponse(cachedEntry), nil
	}

	// Cache successful GETs that carry caching headers.
	if method == http.MethodGet && resp.StatusCode == http.StatusOK && c.isCacheable(resp) {
		entry, err := cache.ResponseToEntry(resp)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to create cache entry")
		} else if entry.TTL() > 0 {
			if err := c.cache.Set(ctx, cacheKey, entry); err != nil {
				c.logger.Warn().Err(err).Msg("Failed to cache response")
			} else {
				c.logger.Debug().
					Str("endpoint", path).
					Dur("ttl", entry.TTL()).
					Msg("Cached response")
			}
		}
	}

	return resp, nil
}

// isCacheable limits the response cache to replies the server marked
// cacheable; admin and billing responses typically carry neither header.
func (c *Client) isCacheable(resp *http.Response) bool {
	return resp.Header.Get("ETag") != "" || resp.Header.Get("Expires") != ""
}

// newRequest builds an API request with auth and standard headers set.
func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	u := c.config.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	var req *http.Request
	var err error
	if reader != nil {
		req, err = http.NewRequestWithContext(ctx, method, u, reader)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.config.TokenSource != nil {
		token, err := c.config.TokenSource(ctx)
		if err != nil {
			return nil, fmt.Errorf("token source: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	return req, nil
}

// Close releases client resources. The Redis client is owned by the
// caller and is not closed here.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// SetHTTPClient replaces the underlying HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
