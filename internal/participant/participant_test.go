package participant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/liveroom/internal/repository/schedule"
	scheduleRedis "github.com/sharetube/liveroom/internal/repository/schedule/redis"
	"github.com/sharetube/liveroom/internal/session"
	"github.com/sharetube/liveroom/internal/transport"
	"github.com/sharetube/liveroom/internal/transport/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	calls []string
	err   error
}

func (r *recorder) record(name string, args ...any) error {
	b, _ := json.Marshal(args)
	r.calls = append(r.calls, name+string(b))
	return r.err
}

func (r *recorder) SelectItem(id string) error { return r.record("select", id) }

func (r *recorder) Step(n int) error { return r.record("step", n) }

func (r *recorder) Transpose(n int) error { return r.record("transpose", n) }

func (r *recorder) ShiftTranspose(n int) error { return r.record("shift", n) }

func (r *recorder) SetScroll(on bool, speed int) error { return r.record("scroll", on, speed) }

func (r *recorder) SetMetronome(on bool, bpm int) error { return r.record("metronome", on, bpm) }

func (r *recorder) SetTab(tab string) { r.record("tab", tab) }

func (r *recorder) SetMaxScroll(n int) { r.record("max", n) }

func current() (int, int) { return 5, 96 }

func TestExecute(t *testing.T) {
	tests := []struct {
		line string
		want string
	}{
		{"next", `step[1]`},
		{"prev", `step[-1]`},
		{"select x", `select["x"]`},
		{"transpose -3", `transpose[-3]`},
		{"up", `shift[1]`},
		{"down", `shift[-1]`},
		{"scroll on", `scroll[true,5]`},
		{"scroll on 8", `scroll[true,8]`},
		{"scroll off", `scroll[false,5]`},
		{"metronome on", `metronome[true,96]`},
		{"METRONOME on 120", `metronome[true,120]`},
		{"tab chords", `tab["chords"]`},
		{"max 480", `max[480]`},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r := &recorder{}
			require.NoError(t, Execute(r, current, tt.line))
			assert.Equal(t, []string{tt.want}, r.calls)
		})
	}
}

func TestExecuteErrors(t *testing.T) {
	r := &recorder{}

	assert.NoError(t, Execute(r, current, "   "))
	assert.ErrorIs(t, Execute(r, current, "quit"), ErrQuit)
	assert.ErrorIs(t, Execute(r, current, "play"), ErrUnknownCommand)
	assert.Error(t, Execute(r, current, "select"))
	assert.Error(t, Execute(r, current, "transpose up"))
	assert.Error(t, Execute(r, current, "scroll maybe"))
	assert.Error(t, Execute(r, current, "metronome on fast"))
	assert.Empty(t, r.calls)

	r.err = errors.New("only the host can change the session")
	assert.ErrorIs(t, Execute(r, current, "next"), r.err)
}

func TestRender(t *testing.T) {
	assert.Equal(t, "[A]Amazing [E/G#]grace", Render("[G]Amazing [D/F#]grace", 2))
	assert.Equal(t, "[Bb]how [intro] sweet", Render("[C]how [intro] sweet", -2))
	assert.Equal(t, "[G]same", Render("[G]same", 0))
	assert.Equal(t, 2*lineHeight, maxScroll("a\nb\nc"))
	assert.Zero(t, maxScroll(""))
}

func seedSchedule(t *testing.T) *redis.Client {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	ctx := context.Background()
	repo := scheduleRedis.NewRepo(rc)
	require.NoError(t, repo.SetSong(ctx, &schedule.SetSongParams{SongID: "x", Title: "X", BPM: 96, Content: "[G]one\n[C]two"}))
	require.NoError(t, repo.SetSong(ctx, &schedule.SetSongParams{SongID: "y", Title: "Y", BPM: 140}))
	require.NoError(t, repo.SetSchedule(ctx, &schedule.SetScheduleParams{
		MonthlyID: "2026-10",
		Name:      "October",
		Evening:   []string{"x", "y"},
	}))

	return rc
}

// spy records the latest snapshot published on the evening session.
func spy(t *testing.T, hub *memory.Hub) func() session.State {
	t.Helper()

	conn, err := hub.Connect(context.Background(), "evening_2026-10")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var mu sync.Mutex
	var last session.State
	conn.OnMessage(transport.EventStateUpdate, func(p json.RawMessage) {
		var st session.State
		if json.Unmarshal(p, &st) == nil {
			mu.Lock()
			last = st
			mu.Unlock()
		}
	})

	return func() session.State {
		mu.Lock()
		defer mu.Unlock()
		return last
	}
}

// startHost runs a host session fed by the returned writer. Writing "quit"
// ends it and the result arrives on the channel.
func startHost(t *testing.T, rc *redis.Client, hub *memory.Hub, heartbeat time.Duration) (*io.PipeWriter, <-chan error) {
	t.Helper()

	in, commands := io.Pipe()
	t.Cleanup(func() { commands.Close() })

	done := make(chan error, 1)
	go func() {
		done <- Session(context.Background(), &Config{
			SessionID:     "evening_2026-10",
			ParticipantID: "host",
			Host:          true,
			Heartbeat:     heartbeat,
		}, &Deps{
			Redis:     rc,
			Transport: hub,
			Clicks:    io.Discard,
			In:        in,
			Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
	}()

	return commands, done
}

func quit(t *testing.T, commands *io.PipeWriter, done <-chan error) {
	t.Helper()

	_, err := io.WriteString(commands, "quit\n")
	require.NoError(t, err)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("session did not stop on quit")
	}
}

func TestSessionServesHostCommands(t *testing.T) {
	rc := seedSchedule(t)
	hub := memory.NewHub(nil)
	latest := spy(t, hub)

	commands, done := startHost(t, rc, hub, 0)

	require.Eventually(t, func() bool {
		id, _ := latest().ActiveItem()
		return id == "x"
	}, 2*time.Second, 10*time.Millisecond)

	_, err := io.WriteString(commands, "next\nup\nup\nmetronome on\n")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		st := latest()
		id, _ := st.ActiveItem()
		return id == "y" && st.TransposeOffset == 2 && st.MetronomeState.IsPlaying && st.MetronomeState.BPM == 140
	}, 2*time.Second, 10*time.Millisecond)

	quit(t, commands, done)
}

func TestSessionHeartbeatReachesLateJoiner(t *testing.T) {
	rc := seedSchedule(t)
	hub := memory.NewHub(nil)

	commands, done := startHost(t, rc, hub, 50*time.Millisecond)
	require.Eventually(t, func() bool {
		return hub.Members("evening_2026-10") == 1
	}, 2*time.Second, 10*time.Millisecond)

	// Joins after the bootstrap snapshot went out and sends no command.
	latest := spy(t, hub)
	assert.Eventually(t, func() bool {
		id, _ := latest().ActiveItem()
		return id == "x"
	}, 2*time.Second, 10*time.Millisecond)

	quit(t, commands, done)
}

func TestConfigValidate(t *testing.T) {
	cfg := &Config{
		SessionID:     "rehearsal",
		ParticipantID: "host",
		LogLevel:      "debug",
		Heartbeat:     2 * time.Second,
		RedisHost:     "localhost",
		RedisPort:     6379,
	}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "DEBUG", cfg.LogLevel)

	cfg.Heartbeat = -time.Second
	assert.Error(t, cfg.Validate())
}
