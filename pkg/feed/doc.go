// Package feed prefetches multiple pages of the public image feed in
// parallel.
//
// The backend reports the total result count on every page, so the
// prefetcher fetches page 1, derives the page count, and distributes the
// remaining pages across a worker pool. Results are merged in page
// order with duplicate suppression, since the backend may repeat an
// image across adjacent pages while new uploads shift the offsets.
//
// Example usage:
//
//	prefetcher := feed.NewPrefetcher(artforgeClient, feed.DefaultConfig())
//	records, err := prefetcher.FetchAll(ctx)
package feed
