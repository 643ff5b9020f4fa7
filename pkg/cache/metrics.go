package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for cache operations.
var (
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artforge_cache_hits_total",
		Help: "Cache hits by layer",
	}, []string{"layer"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artforge_cache_misses_total",
		Help: "Cache misses by layer",
	}, []string{"layer"})

	CacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artforge_cache_evictions_total",
		Help: "Page cache entries evicted oldest-first due to the entry bound",
	})

	NotModifiedResponses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artforge_304_responses_total",
		Help: "304 Not Modified responses served from cache",
	})

	ConditionalRequestsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artforge_conditional_requests_total",
		Help: "Conditional requests sent with If-None-Match or If-Modified-Since",
	})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "artforge_cache_errors_total",
		Help: "Cache operation errors by operation",
	}, []string{"operation"})
)
