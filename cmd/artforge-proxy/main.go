// Command artforge-proxy runs a local caching proxy in front of the
// Artforge API. Requests under /api/ pass through the shared client, so
// they pick up Redis-backed response caching, conditional requests,
// retries and rate-limit awareness.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/artforge/artforge-client/pkg/client"
	"github.com/artforge/artforge-client/pkg/logging"
)

type config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	RedisAddr       string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	BackendURL      string        `env:"BACKEND_URL" envDefault:""`
	UserAgent       string        `env:"USER_AGENT" envDefault:"artforge-proxy/0.1.0 (ops@artforge.io)"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty       bool          `env:"LOG_PRETTY" envDefault:"false"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "artforge-proxy: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(cfg.LogLevel),
		Pretty: cfg.LogPretty,
	})

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

	clientCfg := client.DefaultConfig(redisClient, cfg.UserAgent)
	if cfg.BackendURL != "" {
		clientCfg.BaseURL = cfg.BackendURL
	}

	artforge, err := client.New(clientCfg)
	if err != nil {
		return fmt.Errorf("create artforge client: %w", err)
	}
	defer artforge.Close()

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      newRouter(artforge, logger, cfg.RequestTimeout),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", cfg.Addr).
			Str("user_agent", cfg.UserAgent).
			Msg("Starting artforge proxy")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errCh
}

func newRouter(artforge *client.Client, logger zerolog.Logger, timeout time.Duration) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/api/*", proxyHandler(artforge, logger, timeout))

	return r
}

// proxyHandler forwards GET requests through the caching client and
// streams the response back.
func proxyHandler(artforge *client.Client, logger zerolog.Logger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "only GET is proxied", http.StatusMethodNotAllowed)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		resp, err := artforge.Get(ctx, r.URL.Path, r.URL.Query())
		if err != nil {
			logger.Warn().
				Err(err).
				Str("path", r.URL.Path).
				Msg("Upstream request failed")
			http.Error(w, fmt.Sprintf("upstream request failed: %v", err), http.StatusBadGateway)
			return
		}
		defer resp.Body.Close()

		for key, values := range resp.Header {
			for _, value := range values {
				w.Header().Add(key, value)
			}
		}
		w.WriteHeader(resp.StatusCode)

		if _, err := io.Copy(w, resp.Body); err != nil {
			logger.Warn().Err(err).Msg("Copying response body failed")
		}
	}
}
