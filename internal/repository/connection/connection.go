package connection

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	ErrAlreadyExists = errors.New("connection already exists")
	ErrNotFound      = errors.New("connection not found")
)

// Conn is one participant's websocket on a channel. Writes are serialized
// because gorilla/websocket allows only one concurrent writer.
type Conn struct {
	ClientID string
	Channel  string

	ws *websocket.Conn
	mu sync.Mutex
}

func NewConn(ws *websocket.Conn, channel, clientID string) *Conn {
	return &Conn{ClientID: clientID, Channel: channel, ws: ws}
}

func (c *Conn) WS() *websocket.Conn {
	return c.ws
}

func (c *Conn) Write(data []byte, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *Conn) WriteJSON(v any, timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	return c.ws.WriteJSON(v)
}
