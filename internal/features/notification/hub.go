package notification

import (
	"sync"

	"go.uber.org/zap"
)

const clientBuffer = 32

// Hub fans notifications out to connected websocket clients. A client that
// falls behind by more than clientBuffer messages misses the overflow.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan []byte]struct{}
	closed  bool
	logger  *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[chan []byte]struct{}),
		logger:  logger.Named("notification.hub"),
	}
}

// Subscribe registers a client. The channel is closed by the returned cancel
// function or when the hub shuts down.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, clientBuffer)

	h.mu.Lock()
	if h.closed {
		close(ch)
		h.mu.Unlock()
		return ch, func() {}
	}
	h.clients[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		})
	}
}

// Broadcast queues payload for every client and returns how many accepted it
func (h *Hub) Broadcast(payload []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.clients {
		select {
		case ch <- payload:
			delivered++
		default:
			h.logger.Warn("Dropping notification for slow websocket client")
		}
	}
	return delivered
}

func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}
