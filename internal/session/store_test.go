package session

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sharetube/liveroom/internal/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	states []State
}

func (r *recordingSink) Schedule(s State) {
	r.states = append(r.states, s)
}

type tempoMap map[string]int

func (t tempoMap) NominalBPM(itemID string) (int, bool) {
	bpm, ok := t[itemID]
	return bpm, ok
}

func newHost(t *testing.T, opts ...Option) (*Store, *recordingSink, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.UnixMilli(1_000))
	sink := &recordingSink{}
	opts = append([]Option{WithClock(clk), WithSink(sink)}, opts...)
	return NewHostStore("morning_2024-05", "host-1", opts...), sink, clk
}

func TestNewHostStoreDefaults(t *testing.T) {
	s, _, _ := newHost(t)

	st := s.Snapshot()
	assert.Equal(t, "morning_2024-05", st.SessionID)
	assert.Equal(t, "host-1", st.HostID)
	assert.Nil(t, st.ActiveItemID)
	assert.Equal(t, ScrollState{IsScrolling: false, Speed: DefaultSpeed}, st.ScrollState)
	assert.Equal(t, MetronomeState{IsPlaying: false, BPM: DefaultBPM}, st.MetronomeState)
	assert.True(t, s.HasSnapshot())
	assert.True(t, s.IsHost())
}

func TestSetActiveItemResetsPlayback(t *testing.T) {
	s, _, _ := newHost(t)

	mutations := []func(){
		func() { _, _ = s.SetTranspose(3) },
		func() { _, _ = s.SetScroll(true, 9) },
		func() { _, _ = s.SetMetronome(true, 90) },
		func() { _, _ = s.ShiftTranspose(-7) },
	}

	for i, m := range mutations {
		m()
		_, err := s.SetActiveItem("song-x")
		require.NoError(t, err)

		st := s.Snapshot()
		assert.Zero(t, st.TransposeOffset, "mutation %d", i)
		assert.False(t, st.ScrollState.IsScrolling, "mutation %d", i)
		assert.Equal(t, DefaultSpeed, st.ScrollState.Speed, "mutation %d", i)
		assert.False(t, st.MetronomeState.IsPlaying, "mutation %d", i)
		id, ok := st.ActiveItem()
		assert.True(t, ok)
		assert.Equal(t, "song-x", id)
	}
}

func TestSetActiveItemTempo(t *testing.T) {
	s, _, _ := newHost(t, WithTempo(tempoMap{"fast": 160, "wild": 999}))

	_, err := s.SetMetronome(false, 88)
	require.NoError(t, err)

	st, err := s.SetActiveItem("unknown")
	require.NoError(t, err)
	assert.Equal(t, 88, st.MetronomeState.BPM, "unknown tempo keeps previous bpm")

	st, err = s.SetActiveItem("fast")
	require.NoError(t, err)
	assert.Equal(t, 160, st.MetronomeState.BPM)

	st, err = s.SetActiveItem("wild")
	require.NoError(t, err)
	assert.Equal(t, MaxBPM, st.MetronomeState.BPM)
}

func TestClamping(t *testing.T) {
	s, _, _ := newHost(t)

	st, err := s.SetMetronome(true, 999)
	require.NoError(t, err)
	assert.Equal(t, 300, st.MetronomeState.BPM)

	st, err = s.SetMetronome(true, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, st.MetronomeState.BPM)

	st, err = s.SetScroll(true, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, st.ScrollState.Speed)

	st, err = s.SetScroll(true, 42)
	require.NoError(t, err)
	assert.Equal(t, 10, st.ScrollState.Speed)
}

func TestTransposeIsUnbounded(t *testing.T) {
	s, _, _ := newHost(t)

	for i := 0; i < 20; i++ {
		_, err := s.ShiftTranspose(1)
		require.NoError(t, err)
	}
	assert.Equal(t, 20, s.Snapshot().TransposeOffset)

	st, err := s.SetTranspose(-30)
	require.NoError(t, err)
	assert.Equal(t, -30, st.TransposeOffset)
}

func TestSetTransposeIsAbsolute(t *testing.T) {
	s, _, _ := newHost(t)

	for i := 0; i < 3; i++ {
		_, err := s.SetTranspose(2)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, s.Snapshot().TransposeOffset)
}

func TestMutationsForwardNewSnapshots(t *testing.T) {
	s, sink, clk := newHost(t)

	first, err := s.SetActiveItem("a")
	require.NoError(t, err)
	clk.Advance(5 * time.Millisecond)
	second, err := s.SetTranspose(2)
	require.NoError(t, err)

	require.Len(t, sink.states, 2)
	assert.Equal(t, first, sink.states[0])
	assert.Equal(t, second, sink.states[1])
	assert.Zero(t, sink.states[0].TransposeOffset, "earlier snapshot untouched")
	assert.Equal(t, 2, sink.states[1].TransposeOffset)
	assert.Equal(t, int64(1_000), first.LastUpdate)
	assert.Equal(t, int64(1_005), second.LastUpdate)
}

func TestLastUpdateNeverDecreases(t *testing.T) {
	clk := clock.NewFake(time.UnixMilli(5_000))
	s := NewHostStore("rehearsal", "h", WithClock(clk))
	s.state.LastUpdate = 9_000

	st, err := s.SetTranspose(1)
	require.NoError(t, err)
	assert.Equal(t, int64(9_000), st.LastUpdate)
}

func TestMirrorIsReadOnly(t *testing.T) {
	m := NewMirror()
	assert.False(t, m.HasSnapshot())
	assert.False(t, m.IsHost())

	_, err := m.SetTranspose(1)
	assert.ErrorIs(t, err, ErrReadOnly)
	_, err = m.SetActiveItem("x")
	assert.ErrorIs(t, err, ErrReadOnly)
}

func TestApplyRemoteReplacesWholesale(t *testing.T) {
	m := NewMirror()

	itemA := "a"
	a := State{
		SessionID:       "evening_7",
		HostID:          "h",
		ActiveItemID:    &itemA,
		TransposeOffset: 4,
		ScrollState:     ScrollState{IsScrolling: true, Speed: 8},
		MetronomeState:  MetronomeState{IsPlaying: true, BPM: 140},
		LastUpdate:      10,
	}
	b := State{
		SessionID:   "evening_7",
		HostID:      "h",
		ScrollState: ScrollState{Speed: 2},
		LastUpdate:  20,
	}

	m.ApplyRemote(a)
	m.ApplyRemote(b)

	assert.True(t, m.HasSnapshot())
	assert.Equal(t, b, m.Snapshot())
}

func TestApplyRemoteAcceptsOutOfRange(t *testing.T) {
	m := NewMirror()
	m.ApplyRemote(State{ScrollState: ScrollState{Speed: 99}})
	assert.Equal(t, 99, m.Snapshot().ScrollState.Speed)
}

func TestStateJSON(t *testing.T) {
	item := "song-1"
	st := State{
		SessionID:       "rehearsal",
		HostID:          "h",
		ActiveItemID:    &item,
		TransposeOffset: -2,
		ScrollState:     ScrollState{IsScrolling: true, Speed: 3},
		MetronomeState:  MetronomeState{IsPlaying: false, BPM: 96},
		LastUpdate:      42,
	}

	data, err := json.Marshal(st)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"sessionId": "rehearsal",
		"hostId": "h",
		"activeItemId": "song-1",
		"transposeOffset": -2,
		"scrollState": {"isScrolling": true, "speed": 3},
		"metronomeState": {"isPlaying": false, "bpm": 96},
		"lastUpdate": 42
	}`, string(data))

	empty, err := json.Marshal(NewState("rehearsal", "h"))
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"activeItemId":null`)
}
