package app

import (
	"sync"

	"chaos-story-service/internal/domain"
)

// Hub fans game snapshots out to live subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan domain.Game]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan domain.Game]struct{})}
}

func (h *Hub) subscribe(gameID string, initial domain.Game) (<-chan domain.Game, func()) {
	ch := make(chan domain.Game, 8)
	ch <- initial

	h.mu.Lock()
	set, ok := h.subs[gameID]
	if !ok {
		set = make(map[chan domain.Game]struct{})
		h.subs[gameID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		set := h.subs[gameID]
		if _, ok := set[ch]; !ok {
			return
		}
		delete(set, ch)
		close(ch)
		if len(set) == 0 {
			delete(h.subs, gameID)
		}
	}
	return ch, cancel
}

func (h *Hub) publish(g domain.Game) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[g.ID] {
		select {
		case ch <- g:
		default:
			// slow subscriber: replace the stale snapshot
			select {
			case <-ch:
			default:
			}
			ch <- g
		}
	}
}

// drop closes every subscription of a removed game.
func (h *Hub) drop(gameID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[gameID] {
		close(ch)
	}
	delete(h.subs, gameID)
}

// Subscribers reports how many live subscriptions a game has.
func (h *Hub) Subscribers(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[gameID])
}
