package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/sharetube/liveroom/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesOthersButNotSelf(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	host, err := hub.Connect(ctx, "rehearsal")
	require.NoError(t, err)
	follower, err := hub.Connect(ctx, "rehearsal")
	require.NoError(t, err)
	stranger, err := hub.Connect(ctx, "morning_1")
	require.NoError(t, err)

	var hostGot, followerGot, strangerGot []string
	record := func(dst *[]string) transport.Handler {
		return func(p json.RawMessage) { *dst = append(*dst, string(p)) }
	}
	host.OnMessage(transport.EventStateUpdate, record(&hostGot))
	follower.OnMessage(transport.EventStateUpdate, record(&followerGot))
	stranger.OnMessage(transport.EventStateUpdate, record(&strangerGot))

	require.NoError(t, host.Publish(ctx, transport.EventStateUpdate, map[string]int{"n": 1}))

	assert.Empty(t, hostGot)
	assert.Equal(t, []string{`{"n":1}`}, followerGot)
	assert.Empty(t, strangerGot)
	assert.Equal(t, 2, hub.Members("rehearsal"))
}

func TestHandlersAreScopedByEvent(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	a, err := hub.Connect(ctx, "s")
	require.NoError(t, err)
	b, err := hub.Connect(ctx, "s")
	require.NoError(t, err)

	called := false
	b.OnMessage(transport.EventStateUpdate, func(json.RawMessage) { called = true })

	require.NoError(t, a.Publish(ctx, "other-event", 1))
	assert.False(t, called)
}

func TestRefuse(t *testing.T) {
	hub := NewHub(nil)
	hub.Refuse(true)

	_, err := hub.Connect(context.Background(), "s")
	assert.ErrorIs(t, err, transport.ErrConnection)
}

func TestCloseAndPublish(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	c, err := hub.Connect(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, transport.StatusOpen, c.Status())

	var statuses []transport.Status
	c.OnStatus(func(s transport.Status) { statuses = append(statuses, s) })

	require.NoError(t, c.Close())
	assert.Equal(t, transport.StatusClosed, c.Status())
	assert.Equal(t, []transport.Status{transport.StatusClosed}, statuses)
	assert.Zero(t, hub.Members("s"))

	assert.ErrorIs(t, c.Publish(ctx, transport.EventStateUpdate, 1), transport.ErrNotOpen)
}

func TestDrop(t *testing.T) {
	hub := NewHub(nil)

	c, err := hub.Connect(context.Background(), "s")
	require.NoError(t, err)

	hub.Drop("s", transport.StatusError)
	assert.Equal(t, transport.StatusError, c.Status())
	assert.Zero(t, hub.Members("s"))
}
