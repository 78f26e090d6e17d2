package hub

import (
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"poemgrid/internal/models"
)

// Client wraps one websocket connection. Sends are serialized by a mutex
// since gorilla connections allow a single concurrent writer.
type Client struct {
	ID   string
	Conn *websocket.Conn
	mu   sync.Mutex
	hook func(models.WSFrame)
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{ID: uuid.New().String(), Conn: conn}
}

// SetSendHook replaces the default WebSocket sender (used in tests).
func (c *Client) SetSendHook(fn func(models.WSFrame)) {
	c.mu.Lock()
	c.hook = fn
	c.mu.Unlock()
}

func (c *Client) Send(frame models.WSFrame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hook != nil {
		c.hook(frame)
		return
	}
	if c.Conn == nil {
		return
	}
	_ = c.Conn.WriteJSON(frame)
}
