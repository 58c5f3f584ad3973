package notify

import (
	"context"
	"sync"

	"device_triggers/internal/models"
)

const subscriberBuffer = 64

// Hub is an in-memory pub/sub of notifications keyed by owner, feeding the
// live websocket stream.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan models.Notification]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan models.Notification]struct{}{}}
}

// Subscribe registers a listener for owner. The returned cancel func must be
// called once; it closes the channel.
func (h *Hub) Subscribe(owner string) (<-chan models.Notification, func()) {
	ch := make(chan models.Notification, subscriberBuffer)

	h.mu.Lock()
	if _, ok := h.subs[owner]; !ok {
		h.subs[owner] = map[chan models.Notification]struct{}{}
	}
	h.subs[owner][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			if m, ok := h.subs[owner]; ok {
				delete(m, ch)
				if len(m) == 0 {
					delete(h.subs, owner)
				}
			}
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Subscribers returns the number of live listeners for owner.
func (h *Hub) Subscribers(owner string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[owner])
}

// Notify fans out to the owner's listeners without blocking; a slow
// listener misses the notification.
func (h *Hub) Notify(_ context.Context, n models.Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[n.Owner] {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}
