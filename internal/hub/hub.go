// Package hub fans typed events out to the connections joined to each
// room's channel. The hub never touches room state; callers compute the
// payload first and broadcast after releasing the store lock, so slow
// clients never block mutations.
package hub

import (
	"sync"

	"poemgrid/internal/models"
)

type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Client]struct{} // room code -> joined clients
}

func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[*Client]struct{})}
}

// Join adds the client to the room's channel.
func (h *Hub) Join(roomCode string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[roomCode]
	if !ok {
		ch = make(map[*Client]struct{})
		h.channels[roomCode] = ch
	}
	ch[c] = struct{}{}
}

// Leave removes the client from the room's channel, dropping the channel
// when it empties.
func (h *Hub) Leave(roomCode string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.channels[roomCode]
	if !ok {
		return
	}
	delete(ch, c)
	if len(ch) == 0 {
		delete(h.channels, roomCode)
	}
}

// Broadcast delivers a frame to every connection in the room.
func (h *Hub) Broadcast(roomCode string, frame models.WSFrame) {
	for _, c := range h.snapshot(roomCode) {
		c.Send(frame)
	}
}

// BroadcastExcept delivers a frame to every connection in the room but the
// sender.
func (h *Hub) BroadcastExcept(roomCode string, sender *Client, frame models.WSFrame) {
	for _, c := range h.snapshot(roomCode) {
		if c == sender {
			continue
		}
		c.Send(frame)
	}
}

// ClientCount reports the number of connections joined to the room.
func (h *Hub) ClientCount(roomCode string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[roomCode])
}

// snapshot copies the member set so delivery happens outside the hub lock.
func (h *Hub) snapshot(roomCode string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ch := h.channels[roomCode]
	out := make([]*Client, 0, len(ch))
	for c := range ch {
		out = append(out, c)
	}
	return out
}
