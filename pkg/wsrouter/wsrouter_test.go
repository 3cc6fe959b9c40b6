package wsrouter

import (
	"context"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouteAppliesMiddlewaresInOrder(t *testing.T) {
	var calls []string
	mw := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, conn *websocket.Conn, msg *Message) error {
				calls = append(calls, name)
				return next(ctx, conn, msg)
			}
		}
	}

	r := New()
	r.Use(mw("outer"), mw("inner"))
	r.Handle("state-update", func(ctx context.Context, _ *websocket.Conn, msg *Message) error {
		calls = append(calls, "handler:"+GetEventFromCtx(ctx))
		return nil
	})

	require.NoError(t, r.Route(context.Background(), nil, &Message{Event: "state-update"}))
	assert.Equal(t, []string{"outer", "inner", "handler:state-update"}, calls)
}

func TestRouteUnknownEvent(t *testing.T) {
	r := New()
	err := r.Route(context.Background(), nil, &Message{Event: "nope"})
	assert.ErrorIs(t, err, ErrUnknownEvent)
}

func TestGetEventFromEmptyCtx(t *testing.T) {
	assert.Empty(t, GetEventFromCtx(context.Background()))
}
