// Package notify publishes user-facing toast notifications with
// rate limiting, so a burst of identical failures surfaces once instead
// of stacking.
package notify

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/artforge/artforge-client/pkg/eventbus"
	"github.com/artforge/artforge-client/pkg/logging"
)

var toastsSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "artforge_notify_toasts_suppressed_total",
	Help: "Toasts suppressed by per-key rate limiting",
})

// Severity of a toast.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Toast is published on eventbus.TopicToast.
type Toast struct {
	Key          string
	Severity     Severity
	Message      string
	DismissAfter time.Duration
}

// Config holds notifier configuration.
type Config struct {
	// MinInterval is the minimum spacing between toasts sharing a key.
	MinInterval time.Duration
	// DismissAfter is the default auto-dismiss delay carried on each
	// toast.
	DismissAfter time.Duration
}

// DefaultConfig returns the notifier defaults.
func DefaultConfig() Config {
	return Config{
		MinInterval:  5 * time.Second,
		DismissAfter: 4 * time.Second,
	}
}

// Notifier rate-limits toasts per key and publishes them on the bus.
type Notifier struct {
	bus    *eventbus.Bus
	config Config
	logger zerolog.Logger

	mu   sync.Mutex
	last map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

// New creates a notifier publishing on the given bus.
func New(bus *eventbus.Bus, config Config) *Notifier {
	if config.MinInterval <= 0 {
		config.MinInterval = 5 * time.Second
	}
	if config.DismissAfter <= 0 {
		config.DismissAfter = 4 * time.Second
	}

	return &Notifier{
		bus:    bus,
		config: config,
		logger: logging.NewLogger("notifier"),
		last:   make(map[string]time.Time),
		now:    time.Now,
	}
}

// Info publishes an informational toast.
func (n *Notifier) Info(key, message string) bool {
	return n.publish(key, SeverityInfo, message)
}

// Warn publishes a warning toast.
func (n *Notifier) Warn(key, message string) bool {
	return n.publish(key, SeverityWarning, message)
}

// Error publishes an error toast.
func (n *Notifier) Error(key, message string) bool {
	return n.publish(key, SeverityError, message)
}

// publish emits the toast unless another toast with the same key fired
// within MinInterval. Reports whether the toast went out.
func (n *Notifier) publish(key string, severity Severity, message string) bool {
	now := n.now()

	n.mu.Lock()
	if last, ok := n.last[key]; ok && now.Sub(last) < n.config.MinInterval {
		n.mu.Unlock()
		toastsSuppressedTotal.Inc()
		n.logger.Debug().
			Str("key", key).
			Msg("Toast suppressed by rate limit")
		return false
	}
	n.last[key] = now
	n.mu.Unlock()

	n.bus.Publish(eventbus.TopicToast, Toast{
		Key:          key,
		Severity:     severity,
		Message:      message,
		DismissAfter: n.config.DismissAfter,
	})
	return true
}
