package wsrouter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var ErrUnknownEvent = errors.New("unknown event")

// Message is the wire envelope shared by the relay and its participants.
type Message struct {
	Event   string          `json:"event"`
	From    string          `json:"from,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HandlerFunc func(ctx context.Context, conn *websocket.Conn, msg *Message) error

type Middleware func(next HandlerFunc) HandlerFunc

// ErrorHandlerFunc is called with errors returned by handlers. Returning a
// non-nil error stops ServeConn.
type ErrorHandlerFunc func(ctx context.Context, conn *websocket.Conn, err error) error

type WSRouter struct {
	routes       map[string]HandlerFunc
	middlewares  []Middleware
	errorHandler ErrorHandlerFunc
}

func New() *WSRouter {
	return &WSRouter{
		routes: make(map[string]HandlerFunc),
		errorHandler: func(_ context.Context, conn *websocket.Conn, err error) error {
			return conn.WriteJSON(map[string]string{"error": err.Error()})
		},
	}
}

func (r *WSRouter) Handle(event string, handler HandlerFunc) {
	r.routes[event] = handler
}

// Use appends middlewares. The first one added is the outermost.
func (r *WSRouter) Use(mws ...Middleware) {
	r.middlewares = append(r.middlewares, mws...)
}

func (r *WSRouter) HandleError(handler ErrorHandlerFunc) {
	r.errorHandler = handler
}

// Route dispatches one decoded message.
func (r *WSRouter) Route(ctx context.Context, conn *websocket.Conn, msg *Message) error {
	handler, exists := r.routes[msg.Event]
	if !exists {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, msg.Event)
	}

	for i := len(r.middlewares) - 1; i >= 0; i-- {
		handler = r.middlewares[i](handler)
	}

	return handler(context.WithValue(ctx, eventKey, msg.Event), conn, msg)
}

// ServeConn reads messages until the connection fails or ctx is done.
func (r *WSRouter) ServeConn(ctx context.Context, conn *websocket.Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}

		if err := r.Route(ctx, conn, &msg); err != nil {
			if err := r.errorHandler(ctx, conn, err); err != nil {
				return err
			}
		}
	}
}
