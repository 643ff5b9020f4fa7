// Package metrics documents the Prometheus metrics exposed by the
// Artforge client. Metrics are defined via promauto in the package that
// owns them (client, cache, ratelimit, search, feed, notify) to avoid circular
// dependencies; this package is the reference index.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registerer used by the client.
// All metrics register themselves through promauto against it.
var Registry = prometheus.DefaultRegisterer

// Request metrics (pkg/client):
//   - artforge_requests_total{endpoint, status} (Counter)
//   - artforge_request_duration_seconds{endpoint} (Histogram)
//   - artforge_errors_total{class} (Counter): client, server, rate_limit, network
//
// Retry metrics (pkg/client):
//   - artforge_retries_total{error_class} (Counter)
//   - artforge_retry_backoff_seconds{error_class} (Histogram)
//   - artforge_retry_exhausted_total{error_class} (Counter)
//
// Cache metrics (pkg/cache):
//   - artforge_cache_hits_total{layer} (Counter): layer is "memory" or "redis"
//   - artforge_cache_misses_total{layer} (Counter)
//   - artforge_cache_evictions_total (Counter): page-cache FIFO evictions
//   - artforge_conditional_requests_total (Counter)
//   - artforge_304_responses_total (Counter)
//   - artforge_cache_errors_total{operation} (Counter)
//
// Rate limit metrics (pkg/ratelimit):
//   - artforge_requests_remaining (Gauge)
//   - artforge_rate_limit_blocks_total (Counter)
//   - artforge_rate_limit_throttles_total (Counter)
//
// Search metrics (pkg/search):
//   - artforge_search_dedup_dropped_total (Counter)
//   - artforge_search_stale_discarded_total (Counter)
//   - artforge_search_autoload_pages_total (Counter)
//
// Feed metrics (pkg/feed):
//   - artforge_feed_prefetch_pages_total{status} (Counter)
//
// Notification metrics (pkg/notify):
//   - artforge_notify_toasts_suppressed_total (Counter)
//
// Example queries:
//
//	# Cache hit rate
//	sum(rate(artforge_cache_hits_total[5m])) /
//	(sum(rate(artforge_cache_hits_total[5m])) + sum(rate(artforge_cache_misses_total[5m])))
//
//	# P95 request latency
//	histogram_quantile(0.95, rate(artforge_request_duration_seconds_bucket[5m]))
