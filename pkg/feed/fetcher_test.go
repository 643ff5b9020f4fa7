package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/artforge/artforge-client/pkg/api"
)

// pagedFetcher serves a fixed set of pages and records which pages were
// requested.
type pagedFetcher struct {
	mu      sync.Mutex
	pages   map[int]api.ResultPage
	errs    map[int]error
	fetched []int
}

func newPagedFetcher(perPage, total int) *pagedFetcher {
	f := &pagedFetcher{
		pages: make(map[int]api.ResultPage),
		errs:  make(map[int]error),
	}

	pageCount := (total + perPage - 1) / perPage
	n := 0
	for page := 1; page <= pageCount; page++ {
		var items []api.ImageRecord
		for i := 0; i < perPage && n < total; i++ {
			items = append(items, api.ImageRecord{ID: fmt.Sprintf("img-%03d", n)})
			n++
		}
		f.pages[page] = api.ResultPage{
			Items:   items,
			HasMore: page < pageCount,
			Total:   total,
		}
	}
	return f
}

func (f *pagedFetcher) FeedImages(ctx context.Context, page int) (api.ResultPage, error) {
	f.mu.Lock()
	f.fetched = append(f.fetched, page)
	err := f.errs[page]
	result, ok := f.pages[page]
	f.mu.Unlock()

	if err != nil {
		return api.ResultPage{}, err
	}
	if !ok {
		return api.ResultPage{}, fmt.Errorf("no such page %d", page)
	}
	return result, nil
}

func (f *pagedFetcher) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.fetched)
}

func TestFetchAll_MergesInPageOrder(t *testing.T) {
	fetcher := newPagedFetcher(10, 35) // 4 pages
	p := NewPrefetcher(fetcher, DefaultConfig())

	records, err := p.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(records) != 35 {
		t.Fatalf("records = %d, want 35", len(records))
	}
	for i, r := range records {
		want := fmt.Sprintf("img-%03d", i)
		if r.ID != want {
			t.Fatalf("records[%d].ID = %q, want %q (page order lost)", i, r.ID, want)
		}
	}
	if fetcher.fetchCount() != 4 {
		t.Errorf("fetches = %d, want 4", fetcher.fetchCount())
	}
}

func TestFetchAll_SinglePage(t *testing.T) {
	fetcher := newPagedFetcher(10, 7)
	p := NewPrefetcher(fetcher, DefaultConfig())

	records, err := p.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 7 {
		t.Errorf("records = %d, want 7", len(records))
	}
	if fetcher.fetchCount() != 1 {
		t.Errorf("fetches = %d, want 1 (no workers for a single page)", fetcher.fetchCount())
	}
}

func TestFetchAll_DropsDuplicatesAcrossPages(t *testing.T) {
	fetcher := newPagedFetcher(2, 4)
	// A new upload shifted the offsets: page 2 repeats the last item of
	// page 1.
	fetcher.pages[2] = api.ResultPage{
		Items: []api.ImageRecord{
			{ID: "img-001"},
			{ID: "img-002"},
		},
		HasMore: false,
		Total:   4,
	}

	p := NewPrefetcher(fetcher, DefaultConfig())
	records, err := p.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}

	if len(records) != 3 {
		t.Errorf("records = %d, want 3 (duplicate dropped)", len(records))
	}
}

func TestFetchAll_FirstPageErrorFails(t *testing.T) {
	fetcher := newPagedFetcher(10, 35)
	fetcher.errs[1] = errors.New("backend down")

	p := NewPrefetcher(fetcher, DefaultConfig())
	if _, err := p.FetchAll(context.Background()); err == nil {
		t.Fatal("FetchAll() should fail when the first page fails")
	}
}

func TestFetchAll_LaterPageErrorSkipped(t *testing.T) {
	fetcher := newPagedFetcher(10, 35) // 4 pages
	fetcher.errs[3] = errors.New("transient")

	p := NewPrefetcher(fetcher, DefaultConfig())
	records, err := p.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v, want partial success", err)
	}

	// Page 3 (img-020..img-029) is missing, the rest stays ordered.
	if len(records) != 25 {
		t.Fatalf("records = %d, want 25", len(records))
	}
	if records[19].ID != "img-019" || records[20].ID != "img-030" {
		t.Errorf("gap not where expected: [19]=%s [20]=%s", records[19].ID, records[20].ID)
	}
}

func TestFetchAll_CapsAtMaxPages(t *testing.T) {
	fetcher := newPagedFetcher(10, 1000) // 100 pages

	cfg := DefaultConfig()
	cfg.MaxPages = 3
	p := NewPrefetcher(fetcher, cfg)

	records, err := p.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll() error = %v", err)
	}
	if len(records) != 30 {
		t.Errorf("records = %d, want 30 (3 capped pages)", len(records))
	}
	if fetcher.fetchCount() != 3 {
		t.Errorf("fetches = %d, want 3", fetcher.fetchCount())
	}
}

func TestFetchAll_ContextCancelled(t *testing.T) {
	fetcher := newPagedFetcher(10, 100)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPrefetcher(fetcher, DefaultConfig())
	if _, err := p.FetchAll(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("FetchAll() error = %v, want context.Canceled", err)
	}
}
