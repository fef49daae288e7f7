package ws

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type room struct {
	mu    sync.RWMutex
	conns map[*clientConn]struct{}
}

func newRoom() *room { return &room{conns: map[*clientConn]struct{}{}} }

func (r *room) add(c *clientConn) {
	r.mu.Lock()
	r.conns[c] = struct{}{}
	r.mu.Unlock()
}

// removeConn drops c and returns the number of viewers left.
func (r *room) removeConn(c *clientConn) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, c)
	return len(r.conns)
}

func (r *room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *room) broadcast(msg []byte) {
	// Take a quick snapshot of the current connections
	r.mu.RLock()
	conns := make([]*clientConn, 0, len(r.conns))
	for c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	// Do the I/O outside the lock. A failed write closes the connection; its
	// reader loop then leaves the room.
	for _, c := range conns {
		if err := c.write(websocket.TextMessage, msg); err != nil {
			zap.L().Debug("ws.broadcast_failed", zap.Error(err))
			c.close()
		}
	}
}
