package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/artforge/artforge-client/pkg/api"
	"github.com/artforge/artforge-client/pkg/logging"
)

var prefetchPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "artforge_feed_prefetch_pages_total",
	Help: "Feed pages fetched by the parallel prefetcher",
}, []string{"status"})

// Config holds prefetcher configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel page requests.
	MaxConcurrency int
	// Timeout per page fetch.
	Timeout time.Duration
	// MaxPages caps how many pages one FetchAll call may request.
	MaxPages int
}

// DefaultConfig returns a configuration sized for interactive use.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 4,
		Timeout:        15 * time.Second,
		MaxPages:       20,
	}
}

// PageFetcher fetches a single feed page. *client.Client satisfies this
// interface.
type PageFetcher interface {
	FeedImages(ctx context.Context, page int) (api.ResultPage, error)
}

type pageResult struct {
	page   int
	result api.ResultPage
	err    error
}

// Prefetcher fetches feed pages in parallel and merges them in page
// order.
type Prefetcher struct {
	fetcher PageFetcher
	config  Config
	logger  zerolog.Logger
}

// NewPrefetcher creates a prefetcher around a page fetcher.
func NewPrefetcher(fetcher PageFetcher, config Config) *Prefetcher {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = 4
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 20
	}

	return &Prefetcher{
		fetcher: fetcher,
		config:  config,
		logger:  logging.NewLogger("feed-prefetch"),
	}
}

// FetchAll fetches every feed page up to the configured cap and returns
// the merged records in page order with duplicates removed. Failed
// pages past the first are skipped; the first page failing fails the
// whole call.
func (p *Prefetcher) FetchAll(ctx context.Context) ([]api.ImageRecord, error) {
	start := time.Now()

	first, err := p.fetchPage(ctx, 1)
	if err != nil {
		prefetchPagesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch first feed page: %w", err)
	}
	prefetchPagesTotal.WithLabelValues("ok").Inc()

	totalPages := p.totalPages(first)

	p.logger.Debug().
		Int("total_pages", totalPages).
		Int("total_items", first.Total).
		Msg("Starting feed prefetch")

	if totalPages <= 1 {
		return dedup(first.Items), nil
	}

	pages := make(map[int]api.ResultPage, totalPages)
	pages[1] = first

	pageQueue := make(chan int, totalPages)
	results := make(chan pageResult, totalPages)

	for page := 2; page <= totalPages; page++ {
		pageQueue <- page
	}
	close(pageQueue)

	var wg sync.WaitGroup
	for i := 0; i < p.config.MaxConcurrency; i++ {
		wg.Add(1)
		go p.worker(ctx, pageQueue, results, &wg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	fetched := 1
	for res := range results {
		if res.err != nil {
			prefetchPagesTotal.WithLabelValues("error").Inc()
			p.logger.Warn().
				Err(res.err).
				Int("page", res.page).
				Msg("Feed page fetch failed, skipping")
			continue
		}
		prefetchPagesTotal.WithLabelValues("ok").Inc()
		pages[res.page] = res.result
		fetched++
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	merged := mergePages(pages)

	p.logger.Debug().
		Int("pages", fetched).
		Int("records", len(merged)).
		Dur("duration", time.Since(start)).
		Msg("Feed prefetch complete")

	return merged, nil
}

// totalPages derives the page count from the first page's total and
// item count, capped by MaxPages.
func (p *Prefetcher) totalPages(first api.ResultPage) int {
	if !first.HasMore || len(first.Items) == 0 {
		return 1
	}

	perPage := len(first.Items)
	total := (first.Total + perPage - 1) / perPage
	if total < 2 {
		// The server says there is more even though the count disagrees;
		// trust HasMore.
		total = 2
	}
	if total > p.config.MaxPages {
		total = p.config.MaxPages
	}
	return total
}

func (p *Prefetcher) worker(ctx context.Context, pageQueue <-chan int, results chan<- pageResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for page := range pageQueue {
		if ctx.Err() != nil {
			return
		}

		result, err := p.fetchPage(ctx, page)
		select {
		case results <- pageResult{page: page, result: result, err: err}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Prefetcher) fetchPage(ctx context.Context, page int) (api.ResultPage, error) {
	pageCtx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()
	return p.fetcher.FeedImages(pageCtx, page)
}

// mergePages flattens fetched pages in page order, dropping duplicate
// ids. Missing pages (failed fetches) leave a gap but keep the rest
// ordered.
func mergePages(pages map[int]api.ResultPage) []api.ImageRecord {
	order := make([]int, 0, len(pages))
	for page := range pages {
		order = append(order, page)
	}
	sort.Ints(order)

	var flat []api.ImageRecord
	for _, page := range order {
		flat = append(flat, pages[page].Items...)
	}
	return dedup(flat)
}

func dedup(records []api.ImageRecord) []api.ImageRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0:0]
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r)
	}
	return out
}
