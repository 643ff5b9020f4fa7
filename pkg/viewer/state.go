package viewer

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/artforge/artforge-client/pkg/eventbus"
	"github.com/artforge/artforge-client/pkg/logging"
	"github.com/artforge/artforge-client/pkg/store"
)

// Zoom bounds for the fullscreen viewer.
const (
	MinZoom     = 0.25
	MaxZoom     = 8.0
	DefaultZoom = 1.0
)

// Persisted preference keys.
var (
	keyZoom         = store.NewKey[float64]("fullscreen.zoom", 1)
	keyInfoExpanded = store.NewKey[bool]("fullscreen.info_expanded", 1)
)

// ChangedEvent is published on eventbus.TopicViewerChanged whenever the
// viewer navigates or a preference changes.
type ChangedEvent struct {
	ImageID      string
	Index        int
	Zoom         float64
	InfoExpanded bool
}

// State couples a navigation ring with persisted viewer preferences.
// Preferences survive process restarts through the backing store; a
// store failure degrades to defaults instead of blocking the viewer.
type State struct {
	ring  *Ring
	store store.Store
	bus   *eventbus.Bus

	zoom         float64
	infoExpanded bool

	logger zerolog.Logger
}

// NewState loads persisted preferences and wraps the ring. The bus is
// optional.
func NewState(ctx context.Context, ring *Ring, s store.Store, bus *eventbus.Bus) *State {
	logger := logging.NewLogger("viewer")

	zoom, err := keyZoom.GetOr(ctx, s, DefaultZoom)
	if err != nil {
		logger.Warn().Err(err).Msg("Loading zoom preference failed, using default")
		zoom = DefaultZoom
	}
	zoom = clampZoom(zoom)

	infoExpanded, err := keyInfoExpanded.GetOr(ctx, s, false)
	if err != nil {
		logger.Warn().Err(err).Msg("Loading info-box preference failed, using default")
		infoExpanded = false
	}

	return &State{
		ring:         ring,
		store:        s,
		bus:          bus,
		zoom:         zoom,
		infoExpanded: infoExpanded,
		logger:       logger,
	}
}

// Ring exposes the underlying navigation ring.
func (s *State) Ring() *Ring { return s.ring }

// Zoom returns the current zoom factor.
func (s *State) Zoom() float64 { return s.zoom }

// InfoExpanded reports whether the info box is expanded.
func (s *State) InfoExpanded() bool { return s.infoExpanded }

// SetZoom clamps, applies and persists the zoom factor.
func (s *State) SetZoom(ctx context.Context, zoom float64) {
	s.zoom = clampZoom(zoom)
	if err := keyZoom.Set(ctx, s.store, s.zoom); err != nil {
		s.logger.Warn().Err(err).Msg("Persisting zoom preference failed")
	}
	s.publish()
}

// ToggleInfo flips and persists the info-box expansion.
func (s *State) ToggleInfo(ctx context.Context) bool {
	s.infoExpanded = !s.infoExpanded
	if err := keyInfoExpanded.Set(ctx, s.store, s.infoExpanded); err != nil {
		s.logger.Warn().Err(err).Msg("Persisting info-box preference failed")
	}
	s.publish()
	return s.infoExpanded
}

// Next advances to the next image, wrapping. Zoom is kept; per-image
// zoom reset is the caller's call.
func (s *State) Next() bool {
	_, ok := s.ring.Next()
	if ok {
		s.publish()
	}
	return ok
}

// Prev moves to the previous image, wrapping.
func (s *State) Prev() bool {
	_, ok := s.ring.Prev()
	if ok {
		s.publish()
	}
	return ok
}

// Open moves the cursor to the image with the given id.
func (s *State) Open(id string) bool {
	if !s.ring.Select(id) {
		return false
	}
	s.publish()
	return true
}

func (s *State) publish() {
	if s.bus == nil {
		return
	}

	var id string
	if cur, ok := s.ring.Current(); ok {
		id = cur.ID
	}
	s.bus.Publish(eventbus.TopicViewerChanged, ChangedEvent{
		ImageID:      id,
		Index:        s.ring.Index(),
		Zoom:         s.zoom,
		InfoExpanded: s.infoExpanded,
	})
}

func clampZoom(zoom float64) float64 {
	switch {
	case zoom < MinZoom:
		return MinZoom
	case zoom > MaxZoom:
		return MaxZoom
	default:
		return zoom
	}
}
