// Package eventbus provides a small in-process publish/subscribe bus.
// It replaces the ad-hoc page-global event wiring between the search,
// viewer and notification components with explicit subscriptions.
package eventbus

import (
	"sync"
)

// Topics published by this module.
const (
	TopicSearchResults   = "search.results"
	TopicSearchError     = "search.error"
	TopicSearchExhausted = "search.exhausted"
	TopicToast           = "notify.toast"
	TopicViewerChanged   = "viewer.changed"
)

// Handler receives the payload published to a topic.
type Handler func(payload any)

// Unsubscribe removes a subscription. Calling it more than once is safe.
type Unsubscribe func()

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus dispatches published payloads to topic subscribers. Handlers run
// synchronously on the publishing goroutine, in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	topics map[string][]subscriber
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		topics: make(map[string][]subscriber),
	}
}

// Subscribe registers a handler for a topic and returns its Unsubscribe.
func (b *Bus) Subscribe(topic string, h Handler) Unsubscribe {
	if h == nil {
		return func() {}
	}

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.topics[topic] = append(b.topics[topic], subscriber{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.remove(topic, id)
		})
	}
}

// Publish delivers payload to every subscriber of topic.
func (b *Bus) Publish(topic string, payload any) {
	b.mu.RLock()
	subs := make([]subscriber, len(b.topics[topic]))
	copy(subs, b.topics[topic])
	b.mu.RUnlock()

	for _, s := range subs {
		s.handler(payload)
	}
}

// SubscriberCount returns the number of active subscriptions for a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Bus) remove(topic string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.topics[topic]
	for i, s := range subs {
		if s.id == id {
			b.topics[topic] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.topics[topic]) == 0 {
		delete(b.topics, topic)
	}
}
