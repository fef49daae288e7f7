package ws

import (
	"sync"
)

// Hub keeps the viewers of each auction. Rooms are dropped once empty.
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room // auctionID -> room
}

func NewHub() *Hub { return &Hub{rooms: make(map[string]*room)} }

// Broadcast writes one frame to every viewer of the auction.
func (h *Hub) Broadcast(auctionID string, msg []byte) {
	h.mu.Lock()
	r, ok := h.rooms[auctionID]
	h.mu.Unlock()
	if ok {
		r.broadcast(msg)
	}
}

func (h *Hub) Join(auctionID string, c *clientConn) {
	h.mu.Lock()
	r, ok := h.rooms[auctionID]
	if !ok {
		r = newRoom()
		h.rooms[auctionID] = r
	}
	r.add(c)
	h.mu.Unlock()
}

func (h *Hub) Leave(auctionID string, c *clientConn) {
	h.mu.Lock()
	r, ok := h.rooms[auctionID]
	if ok && r.removeConn(c) == 0 {
		delete(h.rooms, auctionID)
	}
	h.mu.Unlock()
	if ok {
		c.close()
	}
}

// Viewers reports how many connections watch the auction.
func (h *Hub) Viewers(auctionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[auctionID]; ok {
		return r.size()
	}
	return 0
}
