package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ConnContext identifies the viewer behind a connection.
type ConnContext struct {
	AuctionID string
	UserID    string
}

// clientConn serialises writes to one socket. gorilla allows a single
// concurrent writer; reads stay on the reader goroutine.
type clientConn struct {
	rawConn *websocket.Conn
	viewer  ConnContext

	mu        sync.Mutex
	closeOnce sync.Once
}

func newClientConn(raw *websocket.Conn, viewer ConnContext) *clientConn {
	raw.SetReadLimit(maxMessageSize)
	_ = raw.SetReadDeadline(time.Now().Add(pongWait))
	raw.SetPongHandler(func(string) error {
		return raw.SetReadDeadline(time.Now().Add(pongWait))
	})
	return &clientConn{rawConn: raw, viewer: viewer}
}

func (c *clientConn) write(mt int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteMessage(mt, data)
}

func (c *clientConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.rawConn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.rawConn.WriteJSON(v)
}

func (c *clientConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rawConn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// readEnvelope blocks for the next client event.
func (c *clientConn) readEnvelope() (Envelope, error) {
	var env Envelope
	err := c.rawConn.ReadJSON(&env)
	return env, err
}

// close is safe to call from the reader, the pinger and broadcasts.
func (c *clientConn) close() {
	c.closeOnce.Do(func() { _ = c.rawConn.Close() })
}
