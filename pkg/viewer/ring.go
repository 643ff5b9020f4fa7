// Package viewer implements the fullscreen viewer model: circular
// navigation over the visible result set and viewer preferences that
// persist across sessions.
package viewer

import "github.com/artforge/artforge-client/pkg/api"

// Ring is a circular cursor over an ordered list of images. Next on the
// last item wraps to the first and Prev on the first wraps to the last.
// A ring over a single item navigates to itself; an empty ring reports
// ok=false everywhere and never panics.
//
// Ring is not safe for concurrent use.
type Ring struct {
	items []api.ImageRecord
	pos   int
}

// NewRing creates a ring over a copy of items, positioned at the first
// item.
func NewRing(items []api.ImageRecord) *Ring {
	copied := make([]api.ImageRecord, len(items))
	copy(copied, items)
	return &Ring{items: copied}
}

// Len returns the number of items in the ring.
func (r *Ring) Len() int { return len(r.items) }

// Current returns the item under the cursor.
func (r *Ring) Current() (api.ImageRecord, bool) {
	if len(r.items) == 0 {
		return api.ImageRecord{}, false
	}
	return r.items[r.pos], true
}

// Index returns the cursor position, or -1 for an empty ring.
func (r *Ring) Index() int {
	if len(r.items) == 0 {
		return -1
	}
	return r.pos
}

// Next advances the cursor, wrapping past the end.
func (r *Ring) Next() (api.ImageRecord, bool) {
	if len(r.items) == 0 {
		return api.ImageRecord{}, false
	}
	r.pos = (r.pos + 1) % len(r.items)
	return r.items[r.pos], true
}

// Prev moves the cursor back, wrapping past the start.
func (r *Ring) Prev() (api.ImageRecord, bool) {
	if len(r.items) == 0 {
		return api.ImageRecord{}, false
	}
	r.pos = (r.pos - 1 + len(r.items)) % len(r.items)
	return r.items[r.pos], true
}

// Select moves the cursor to the item with the given id.
func (r *Ring) Select(id string) bool {
	for i, item := range r.items {
		if item.ID == id {
			r.pos = i
			return true
		}
	}
	return false
}

// SetItems replaces the ring contents, keeping the cursor on the
// current item when it survives the replacement. When it does not, the
// cursor clamps to the nearest position still in range.
func (r *Ring) SetItems(items []api.ImageRecord) {
	currentID := ""
	if cur, ok := r.Current(); ok {
		currentID = cur.ID
	}

	r.items = make([]api.ImageRecord, len(items))
	copy(r.items, items)

	if currentID != "" && r.Select(currentID) {
		return
	}
	if r.pos >= len(r.items) {
		r.pos = len(r.items) - 1
	}
	if r.pos < 0 {
		r.pos = 0
	}
}
