package broadcaster

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/liveroom/internal/clock"
	"github.com/sharetube/liveroom/internal/session"
	"github.com/sharetube/liveroom/internal/transport"
)

const DefaultWindow = 200 * time.Millisecond

var ErrStalePublishDropped = errors.New("snapshot dropped: connection not open")

// Publisher is the part of a transport connection the broadcaster needs.
type Publisher interface {
	Publish(ctx context.Context, event string, payload any) error
	Status() transport.Status
}

type Option func(*Broadcaster)

func WithClock(clk clock.Clock) Option {
	return func(b *Broadcaster) { b.clock = clk }
}

func WithWindow(window time.Duration) Option {
	return func(b *Broadcaster) { b.window = window }
}

// WithHeartbeat re-publishes the last snapshot once the channel has been
// quiet for interval, so followers that join late converge without a host
// mutation.
func WithHeartbeat(interval time.Duration) Option {
	return func(b *Broadcaster) { b.heartbeat = interval }
}

func WithLogger(logger *slog.Logger) Option {
	return func(b *Broadcaster) { b.logger = logger }
}

// Broadcaster coalesces host snapshots into at most one publish per window.
type Broadcaster struct {
	conn      Publisher
	local     func(session.State)
	clock     clock.Clock
	window    time.Duration
	heartbeat time.Duration
	logger    *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending *session.State
	last    *session.State
	timer   clock.Timer
	beat    clock.Timer
	beatGen uint64
	closed  bool
	sent    int
	dropped int
	sentAt  time.Time
}

func New(conn Publisher, local func(session.State), opts ...Option) *Broadcaster {
	b := &Broadcaster{
		conn:   conn,
		local:  local,
		clock:  clock.Real{},
		window: DefaultWindow,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.ctx, b.cancel = context.WithCancel(context.Background())

	if b.heartbeat > 0 {
		b.mu.Lock()
		b.armHeartbeat()
		b.mu.Unlock()
	}

	return b
}

// Schedule applies the snapshot locally right away and queues it for the
// next publish window.
func (b *Broadcaster) Schedule(state session.State) {
	if b.local != nil {
		b.local(state)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.pending = &state
	b.last = &state
	if b.timer == nil {
		b.timer = b.clock.AfterFunc(b.window, b.flush)
	}
}

func (b *Broadcaster) flush() {
	b.mu.Lock()
	if b.closed || b.pending == nil {
		b.timer = nil
		b.mu.Unlock()
		return
	}
	state := *b.pending
	b.pending = nil
	b.timer = nil
	b.mu.Unlock()

	b.publish(state)
}

func (b *Broadcaster) publish(state session.State) {
	if status := b.conn.Status(); status != transport.StatusOpen {
		b.mu.Lock()
		b.dropped++
		b.mu.Unlock()
		b.logger.Debug("skipping publish", "error", ErrStalePublishDropped, "status", status, "session_id", state.SessionID)
		return
	}

	if err := b.conn.Publish(b.ctx, transport.EventStateUpdate, state); err != nil {
		b.logger.Warn("failed to publish snapshot", "error", err, "session_id", state.SessionID)
		return
	}

	b.mu.Lock()
	b.sent++
	b.sentAt = b.clock.Now()
	b.mu.Unlock()
}

// armHeartbeat must be called with b.mu held.
func (b *Broadcaster) armHeartbeat() {
	b.beatGen++
	gen := b.beatGen
	b.beat = b.clock.AfterFunc(b.heartbeat, func() {
		b.mu.Lock()
		if b.closed || gen != b.beatGen {
			b.mu.Unlock()
			return
		}
		var state *session.State
		quiet := b.sentAt.IsZero() || b.clock.Now().Sub(b.sentAt) >= b.heartbeat
		if b.pending == nil && b.last != nil && quiet {
			s := *b.last
			state = &s
		}
		b.armHeartbeat()
		b.mu.Unlock()

		if state != nil {
			b.publish(*state)
		}
	})
}

// Pending reports whether a publish is waiting for its window.
func (b *Broadcaster) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.timer != nil
}

// Stats returns how many snapshots were published and dropped.
func (b *Broadcaster) Stats() (sent, dropped int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sent, b.dropped
}

// Close cancels the pending window and the heartbeat.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.beat != nil {
		b.beat.Stop()
		b.beat = nil
	}
	b.cancel()
}
