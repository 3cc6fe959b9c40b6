package transport

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
)

// Base carries the parts every Connection implementation shares: identity,
// status tracking and self-echo-free dispatch.
type Base struct {
	id     string
	logger *slog.Logger

	mu       sync.RWMutex
	status   Status
	handlers map[string][]Handler
	watchers []func(Status)
}

func NewBase(id string, logger *slog.Logger) *Base {
	if logger == nil {
		logger = slog.Default()
	}

	return &Base{
		id:       id,
		logger:   logger,
		status:   StatusConnecting,
		handlers: make(map[string][]Handler),
	}
}

func (b *Base) ID() string {
	return b.id
}

func (b *Base) Status() Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status
}

func (b *Base) OnMessage(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

func (b *Base) OnStatus(fn func(Status)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.watchers = append(b.watchers, fn)
}

// SetStatus records a transition and notifies watchers when it changed.
// Once closed or errored the status is terminal.
func (b *Base) SetStatus(status Status) {
	b.mu.Lock()
	if b.status == status || b.status == StatusClosed || b.status == StatusError {
		b.mu.Unlock()
		return
	}
	b.status = status
	watchers := slices.Clone(b.watchers)
	b.mu.Unlock()

	b.logger.Debug("connection status changed", "connection_id", b.id, "status", status)
	for _, fn := range watchers {
		fn(status)
	}
}

// Deliver decodes a raw envelope and hands its payload to the registered
// handlers, skipping envelopes this connection sent itself.
func (b *Base) Deliver(data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		b.logger.Debug("dropping undecodable envelope", "connection_id", b.id, "error", err)
		return
	}
	b.DeliverEnvelope(&env)
}

func (b *Base) DeliverEnvelope(env *Envelope) {
	if env.From == b.id {
		return
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[env.Event]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		h(env.Payload)
	}
}
