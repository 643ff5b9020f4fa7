// Package search implements the client-side search session: page cursor,
// duplicate suppression across pages, cancellation of superseded
// queries, and bounded auto-loading until results become visible.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/artforge/artforge-client/pkg/api"
	"github.com/artforge/artforge-client/pkg/cache"
	"github.com/artforge/artforge-client/pkg/eventbus"
)

// Prometheus metrics for search sessions.
var (
	dedupDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artforge_search_dedup_dropped_total",
		Help: "Result items dropped because their id was already yielded",
	})

	staleDiscardedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artforge_search_stale_discarded_total",
		Help: "Responses discarded because their request was superseded",
	})

	autoloadPagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "artforge_search_autoload_pages_total",
		Help: "Extra pages fetched automatically because all loaded items were filtered out",
	})
)

// Session errors.
var (
	// ErrSuperseded is returned when a newer query replaced this request
	// before its response could be applied.
	ErrSuperseded = errors.New("search request superseded")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("search session closed")
)

// Fetcher fetches one page of search results. *client.Client satisfies
// this interface.
type Fetcher interface {
	SearchImages(ctx context.Context, q string, page int, filter string) (api.ResultPage, error)
}

// Config holds session configuration.
type Config struct {
	// Cache is the per-(query, page) result cache. Optional.
	Cache *cache.PageCache

	// Bus receives search.results / search.error / search.exhausted
	// events. Optional.
	Bus *eventbus.Bus

	// Visible decides whether an item passes the client-side visibility
	// filters (ownership tab, tag filters). Nil means everything is
	// visible.
	Visible func(api.ImageRecord) bool

	// MaxAutoLoad bounds how many extra pages one LoadMore call may
	// fetch while every loaded item is filtered out.
	MaxAutoLoad int

	// Debounce is the quiet period for SetQueryDebounced.
	Debounce time.Duration

	Logger zerolog.Logger
}

// ResultsEvent is published on eventbus.TopicSearchResults.
type ResultsEvent struct {
	SessionID string
	Query     string
	Page      int
	Added     []api.ImageRecord
	HasMore   bool
	Total     int
}

// ErrorEvent is published on eventbus.TopicSearchError.
type ErrorEvent struct {
	SessionID string
	Query     string
	Err       error
}

// ExhaustedEvent is published on eventbus.TopicSearchExhausted when the
// auto-load bound was reached without any visible result.
type ExhaustedEvent struct {
	SessionID string
	Query     string
	Attempts  int
}

// Session owns one user's search state. A new query supersedes the
// previous one: its in-flight requests are cancelled and any late
// response is discarded by the request-id guard.
type Session struct {
	id      string
	fetcher Fetcher
	cfg     Config

	mu      sync.Mutex
	closed  bool
	query   string
	filter  string
	page    int
	hasMore bool
	total   int
	seen    map[string]struct{}
	results []api.ImageRecord

	// gen increments per query; reqSeq assigns monotonically increasing
	// request ids; currentReq is the newest issued request. A response
	// applies only if both still match.
	gen        uint64
	reqSeq     uint64
	currentReq uint64

	queryCtx    context.Context
	queryCancel context.CancelFunc

	debounce *time.Timer
	timers   map[*time.Timer]struct{}
}

// NewSession creates a search session around a fetcher.
func NewSession(fetcher Fetcher, cfg Config) *Session {
	if fetcher == nil {
		panic("fetcher cannot be nil")
	}
	if cfg.MaxAutoLoad <= 0 {
		cfg.MaxAutoLoad = 5
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = 250 * time.Millisecond
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:          uuid.NewString(),
		fetcher:     fetcher,
		cfg:         cfg,
		hasMore:     true,
		seen:        make(map[string]struct{}),
		queryCtx:    ctx,
		queryCancel: cancel,
		timers:      make(map[*time.Timer]struct{}),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SetQuery starts a new search. In-flight requests of the previous query
// are cancelled. Re-issuing the identical query resets the session
// cursor and dedup set but keeps the page cache warm; a genuinely new
// query invalidates the cache wholesale.
func (s *Session) SetQuery(query, filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	newQuery := query != s.query || filter != s.filter

	s.queryCancel()
	s.gen++
	s.currentReq = s.reqSeq

	s.query = query
	s.filter = filter
	s.page = 0
	s.hasMore = true
	s.total = 0
	s.seen = make(map[string]struct{})
	s.results = nil

	if newQuery && s.cfg.Cache != nil {
		s.cfg.Cache.Clear()
	}

	s.queryCtx, s.queryCancel = context.WithCancel(context.Background())

	s.cfg.Logger.Debug().
		Str("session", s.id).
		Str("query", query).
		Str("filter", filter).
		Msg("Search query set")
}

// SetQueryDebounced schedules SetQuery after the configured quiet
// period. Rapid successive calls keep only the most recent input.
func (s *Session) SetQueryDebounced(query, filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.debounce != nil {
		s.debounce.Stop()
		delete(s.timers, s.debounce)
	}

	var timer *time.Timer
	timer = time.AfterFunc(s.cfg.Debounce, func() {
		s.mu.Lock()
		delete(s.timers, timer)
		if s.debounce == timer {
			s.debounce = nil
		}
		closed := s.closed
		s.mu.Unlock()

		if !closed {
			s.SetQuery(query, filter)
		}
	})

	s.debounce = timer
	s.timers[timer] = struct{}{}
}

// LoadMore fetches the next result page, deduplicates and filters it,
// and appends the surviving items to the session's visible results. If
// every loaded item is filtered out while the server reports more pages,
// further pages are fetched automatically, bounded by MaxAutoLoad.
//
// The returned slice holds only the newly visible items. A call whose
// response arrives after the query changed returns ErrSuperseded.
func (s *Session) LoadMore(ctx context.Context) ([]api.ImageRecord, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if !s.hasMore {
		s.mu.Unlock()
		return nil, nil
	}

	gen := s.gen
	queryCtx := s.queryCtx
	query, filter := s.query, s.filter
	nextPage := s.page + 1

	s.reqSeq++
	reqID := s.reqSeq
	s.currentReq = reqID
	s.mu.Unlock()

	// The fetch context dies with either the caller or the query.
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(queryCtx, cancel)
	defer stop()

	var added []api.ImageRecord
	attempts := 0

	for {
		page, err := s.fetchPage(fetchCtx, query, filter, nextPage)
		if err != nil {
			if queryCtx.Err() != nil {
				staleDiscardedTotal.Inc()
				return nil, ErrSuperseded
			}
			s.publishError(query, err)
			return nil, fmt.Errorf("load page %d: %w", nextPage, err)
		}

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		if gen != s.gen || reqID != s.currentReq {
			// A newer query or request won; this response is stale.
			s.mu.Unlock()
			staleDiscardedTotal.Inc()
			s.cfg.Logger.Debug().
				Str("session", s.id).
				Str("query", query).
				Int("page", nextPage).
				Msg("Discarding superseded response")
			return nil, ErrSuperseded
		}

		s.page = nextPage
		s.hasMore = page.HasMore
		s.total = page.Total

		for _, item := range page.Items {
			if _, dup := s.seen[item.ID]; dup {
				dedupDroppedTotal.Inc()
				continue
			}
			s.seen[item.ID] = struct{}{}

			if s.cfg.Visible != nil && !s.cfg.Visible(item) {
				continue
			}
			s.results = append(s.results, item)
			added = append(added, item)
		}
		hasMore := s.hasMore
		total := s.total
		s.mu.Unlock()

		if len(added) > 0 || !hasMore {
			s.publishResults(query, nextPage, added, hasMore, total)
			return added, nil
		}

		// Everything on this page was filtered out and the server has
		// more: keep going, but never unbounded.
		attempts++
		if attempts >= s.cfg.MaxAutoLoad {
			s.cfg.Logger.Warn().
				Str("session", s.id).
				Str("query", query).
				Int("attempts", attempts).
				Msg("Auto-load bound reached with no visible results")
			s.publishExhausted(query, attempts)
			return nil, nil
		}

		autoloadPagesTotal.Inc()
		nextPage++
	}
}

// fetchPage serves a page from the cache or the fetcher, filling the
// cache on success.
func (s *Session) fetchPage(ctx context.Context, query, filter string, page int) (api.ResultPage, error) {
	key := cache.PageKey{Query: query, Filter: filter, Page: page}
	if s.cfg.Cache != nil {
		if cached, ok := s.cfg.Cache.Get(key); ok {
			return cached, nil
		}
	}

	result, err := s.fetcher.SearchImages(ctx, query, page, filter)
	if err != nil {
		return api.ResultPage{}, err
	}

	if s.cfg.Cache != nil {
		s.cfg.Cache.Put(key, result)
	}
	return result, nil
}

// Results returns a copy of the currently visible result set.
func (s *Session) Results() []api.ImageRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]api.ImageRecord, len(s.results))
	copy(out, s.results)
	return out
}

// Query returns the active query and filter.
func (s *Session) Query() (query, filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query, s.filter
}

// HasMore reports whether the server has more pages for the active query.
func (s *Session) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Total returns the server-reported total for the active query.
func (s *Session) Total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

// Close cancels in-flight work and every pending timer. The session is
// unusable afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.queryCancel()

	for timer := range s.timers {
		timer.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	s.debounce = nil
}

func (s *Session) publishResults(query string, page int, added []api.ImageRecord, hasMore bool, total int) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.Publish(eventbus.TopicSearchResults, ResultsEvent{
		SessionID: s.id,
		Query:     query,
		Page:      page,
		Added:     added,
		HasMore:   hasMore,
		Total:     total,
	})
}

func (s *Session) publishError(query string, err error) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.Publish(eventbus.TopicSearchError, ErrorEvent{
		SessionID: s.id,
		Query:     query,
		Err:       err,
	})
}

func (s *Session) publishExhausted(query string, attempts int) {
	if s.cfg.Bus == nil {
		return
	}
	s.cfg.Bus.Publish(eventbus.TopicSearchExhausted, ExhaustedEvent{
		SessionID: s.id,
		Query:     query,
		Attempts:  attempts,
	})
}
