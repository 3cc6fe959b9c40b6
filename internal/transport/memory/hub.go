package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/sharetube/liveroom/internal/transport"
)

// Hub is an in-process channel provider. Publishes are delivered
// synchronously to every other connection on the same channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*conn]struct{}
	refuse   bool
	logger   *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		channels: make(map[string]map[*conn]struct{}),
		logger:   logger,
	}
}

// Refuse makes subsequent Connect calls fail, simulating an unreachable
// transport.
func (h *Hub) Refuse(refuse bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.refuse = refuse
}

func (h *Hub) Connect(ctx context.Context, sessionID string) (transport.Connection, error) {
	c := &conn{
		Base:    transport.NewBase(uuid.NewString(), h.logger),
		hub:     h,
		channel: transport.ChannelName(sessionID),
	}

	if err := ctx.Err(); err != nil {
		c.SetStatus(transport.StatusError)
		return nil, fmt.Errorf("%w: %w", transport.ErrConnection, err)
	}

	h.mu.Lock()
	if h.refuse {
		h.mu.Unlock()
		c.SetStatus(transport.StatusError)
		return nil, fmt.Errorf("%w: %s refused", transport.ErrConnection, c.channel)
	}
	members, ok := h.channels[c.channel]
	if !ok {
		members = make(map[*conn]struct{})
		h.channels[c.channel] = members
	}
	members[c] = struct{}{}
	h.mu.Unlock()

	c.SetStatus(transport.StatusOpen)
	return c, nil
}

// Members returns the number of open connections on a session channel.
func (h *Hub) Members(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[transport.ChannelName(sessionID)])
}

// Drop tears down every connection on the session channel with the given
// terminal status, as a network failure would.
func (h *Hub) Drop(sessionID string, status transport.Status) {
	h.mu.Lock()
	channel := transport.ChannelName(sessionID)
	members := h.channels[channel]
	delete(h.channels, channel)
	h.mu.Unlock()

	for c := range members {
		c.SetStatus(status)
	}
}

func (h *Hub) publish(from *conn, data []byte) {
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.channels[from.channel]))
	for c := range h.channels[from.channel] {
		if c != from {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.Deliver(data)
	}
}

func (h *Hub) remove(c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.channels[c.channel]
	delete(members, c)
	if len(members) == 0 {
		delete(h.channels, c.channel)
	}
}

type conn struct {
	*transport.Base
	hub     *Hub
	channel string
}

func (c *conn) Publish(ctx context.Context, event string, payload any) error {
	if c.Status() != transport.StatusOpen {
		return transport.ErrNotOpen
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := transport.Encode(c.ID(), event, payload)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	c.hub.publish(c, data)
	return nil
}

func (c *conn) Close() error {
	c.hub.remove(c)
	c.SetStatus(transport.StatusClosed)
	return nil
}
