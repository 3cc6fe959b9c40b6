package redis

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/liveroom/internal/transport"
)

// Transport publishes and subscribes directly on redis channels named after
// the session, sharing the wire format with the relay server.
type Transport struct {
	rc               *redis.Client
	subscribeTimeout time.Duration
	logger           *slog.Logger
}

func New(rc *redis.Client, subscribeTimeout time.Duration, logger *slog.Logger) *Transport {
	if logger == nil {
		logger = slog.Default()
	}

	return &Transport{rc: rc, subscribeTimeout: subscribeTimeout, logger: logger}
}

func (t *Transport) Connect(ctx context.Context, sessionID string) (transport.Connection, error) {
	channel := transport.ChannelName(sessionID)
	c := &conn{
		Base:    transport.NewBase(uuid.NewString(), t.logger),
		rc:      t.rc,
		channel: channel,
		done:    make(chan struct{}),
	}

	subCtx := ctx
	if t.subscribeTimeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, t.subscribeTimeout)
		defer cancel()
	}

	c.pubsub = t.rc.Subscribe(subCtx, channel)
	if _, err := c.pubsub.Receive(subCtx); err != nil {
		c.pubsub.Close()
		c.SetStatus(transport.StatusError)
		return nil, fmt.Errorf("%w: failed to subscribe to %s: %w", transport.ErrConnection, channel, err)
	}

	c.SetStatus(transport.StatusOpen)
	go c.readLoop()

	return c, nil
}

type conn struct {
	*transport.Base
	rc      *redis.Client
	pubsub  *redis.PubSub
	channel string

	closeOnce sync.Once
	done      chan struct{}
}

func (c *conn) readLoop() {
	ch := c.pubsub.Channel()
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-ch:
			if !ok {
				c.SetStatus(transport.StatusError)
				return
			}
			c.Deliver([]byte(msg.Payload))
		}
	}
}

func (c *conn) Publish(ctx context.Context, event string, payload any) error {
	if c.Status() != transport.StatusOpen {
		return transport.ErrNotOpen
	}

	data, err := transport.Encode(c.ID(), event, payload)
	if err != nil {
		return fmt.Errorf("failed to encode envelope: %w", err)
	}

	if err := c.rc.Publish(ctx, c.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", c.channel, err)
	}

	return nil
}

func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.SetStatus(transport.StatusClosed)
		close(c.done)
		err = c.pubsub.Close()
	})

	return err
}
