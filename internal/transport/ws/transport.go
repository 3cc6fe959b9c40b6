package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sharetube/liveroom/internal/transport"
)

const writeWait = 5 * time.Second

type Config struct {
	// BaseURL of the relay server, e.g. ws://localhost:8080.
	BaseURL          string
	HandshakeTimeout time.Duration
	// KeepAlive is the ALIVE interval; zero disables keepalives.
	KeepAlive time.Duration
}

// Transport connects to the relay server over websockets.
type Transport struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger,
	}
}

func (t *Transport) endpoint(sessionID, clientID string) (string, error) {
	u, err := url.Parse(t.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse base url: %w", err)
	}

	u = u.JoinPath("/api/v1/ws/live-room", sessionID)
	q := u.Query()
	q.Set("client-id", clientID)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func (t *Transport) Connect(ctx context.Context, sessionID string) (transport.Connection, error) {
	c := &conn{
		Base: transport.NewBase(uuid.NewString(), t.logger),
		done: make(chan struct{}),
	}

	endpoint, err := t.endpoint(sessionID, c.ID())
	if err != nil {
		c.SetStatus(transport.StatusError)
		return nil, fmt.Errorf("%w: %w", transport.ErrConnection, err)
	}

	wsConn, _, err := t.dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		c.SetStatus(transport.StatusError)
		return nil, fmt.Errorf("%w: failed to dial relay: %w", transport.ErrConnection, err)
	}
	c.ws = wsConn

	c.SetStatus(transport.StatusOpen)
	go c.readLoop()
	if t.cfg.KeepAlive > 0 {
		go c.keepAlive(t.cfg.KeepAlive)
	}

	return c, nil
}

type conn struct {
	*transport.Base
	ws *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *conn) readLoop() {
	for {
		var env transport.Envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			select {
			case <-c.done:
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					c.SetStatus(transport.StatusClosed)
				} else {
					c.SetStatus(transport.StatusError)
				}
				c.ws.Close()
			}
			return
		}

		c.DeliverEnvelope(&env)
	}
}

func (c *conn) keepAlive(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(&transport.Envelope{Event: transport.EventAlive}); err != nil {
				return
			}
		}
	}
}

func (c *conn) write(env *transport.Envelope) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(env)
}

func (c *conn) Publish(ctx context.Context, event string, payload any) error {
	if c.Status() != transport.StatusOpen {
		return transport.ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	if err := c.write(&transport.Envelope{Event: event, From: c.ID(), Payload: data}); err != nil {
		return fmt.Errorf("failed to write envelope: %w", err)
	}

	return nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.SetStatus(transport.StatusClosed)

		c.writeMu.Lock()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		c.writeMu.Unlock()

		err = c.ws.Close()
	})

	return err
}
