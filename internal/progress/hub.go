package progress

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Hub fans updates out to per-job subscribers such as websocket clients.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uuid.UUID]map[chan Update]struct{}
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[uuid.UUID]map[chan Update]struct{})}
}

// Subscribe returns a channel of updates for jobID and a function that
// unsubscribes and closes it.
func (h *Hub) Subscribe(jobID uuid.UUID) (<-chan Update, func()) {
	ch := make(chan Update, 16)

	h.mu.Lock()
	if h.subscribers[jobID] == nil {
		h.subscribers[jobID] = make(map[chan Update]struct{})
	}
	h.subscribers[jobID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.remove(jobID, ch)
		})
	}
}

// Apply implements Sink. A subscriber that cannot keep up is dropped.
func (h *Hub) Apply(_ context.Context, u Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subscribers[u.JobID] {
		select {
		case ch <- u:
		default:
			h.remove(u.JobID, ch)
		}
	}
	return nil
}

// Subscribers reports how many clients follow jobID.
func (h *Hub) Subscribers(jobID uuid.UUID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[jobID])
}

func (h *Hub) remove(jobID uuid.UUID, ch chan Update) {
	clients, ok := h.subscribers[jobID]
	if !ok {
		return
	}
	if _, ok := clients[ch]; !ok {
		return
	}
	delete(clients, ch)
	close(ch)
	if len(clients) == 0 {
		delete(h.subscribers, jobID)
	}
}
