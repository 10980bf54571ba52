// Package changefeed fans change notifications from one transport connection
// out to many subscriptions. The transports live in sub-packages: pgnotify
// (PostgreSQL LISTEN/NOTIFY), redisfeed (Redis Pub/Sub) and kafkafeed (Kafka).
package changefeed

import (
	"encoding/json"
	"fmt"
	"sync"

	"routesync/internal/core/ports"
	"routesync/internal/pkg/metrics"
)

// OpResync marks a synthetic notification sent after the transport lost its
// connection; notifications may have been missed in between.
const OpResync = "RESYNC"

// Hub is safe for concurrent use. Handlers run on the transport's goroutine
// while the hub holds a read lock, so they must not block and must not
// unsubscribe from inside the handler.
type Hub struct {
	mu      sync.RWMutex
	nextID  uint64
	subs    map[uint64]subscriber
	metrics *metrics.Metrics
}

type subscriber struct {
	stream  ports.Stream
	filter  ports.Filter
	handler ports.NotificationHandler
}

func NewHub(m *metrics.Metrics) *Hub {
	return &Hub{subs: make(map[uint64]subscriber), metrics: m}
}

// Add registers handler for stream. The returned subscription is idempotent.
func (h *Hub) Add(stream ports.Stream, filter ports.Filter, handler ports.NotificationHandler) (ports.Subscription, error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", stream)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	id := h.nextID
	h.subs[id] = subscriber{stream: stream, filter: filter, handler: handler}
	return &subscription{hub: h, id: id}, nil
}

// Dispatch delivers n to every matching subscriber and returns how many got it.
func (h *Hub) Dispatch(n ports.Notification) int {
	h.metrics.ObserveNotification(string(n.Stream))

	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for _, s := range h.subs {
		if s.stream != n.Stream || !s.filter.Matches(n) {
			continue
		}
		s.handler(n)
		delivered++
	}
	return delivered
}

// Resync tells every subscriber of every stream that it may have missed changes.
func (h *Hub) Resync() {
	for _, stream := range ports.Streams() {
		h.Dispatch(ports.Notification{Stream: stream, Op: OpResync})
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) remove(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, id)
}

type subscription struct {
	hub  *Hub
	id   uint64
	once sync.Once
}

func (s *subscription) Unsubscribe() error {
	s.once.Do(func() { s.hub.remove(s.id) })
	return nil
}

// Decode parses a notification as written by the database triggers and by
// the publishers in this package.
func Decode(payload []byte) (ports.Notification, error) {
	var n ports.Notification
	if err := json.Unmarshal(payload, &n); err != nil {
		return ports.Notification{}, fmt.Errorf("decode change notification: %w", err)
	}
	if n.Stream == "" {
		return ports.Notification{}, fmt.Errorf("decode change notification: missing stream")
	}
	return n, nil
}

func Encode(n ports.Notification) ([]byte, error) {
	return json.Marshal(n)
}
