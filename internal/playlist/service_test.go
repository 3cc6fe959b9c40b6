package playlist

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/liveroom/internal/repository/schedule"
	scheduleRedis "github.com/sharetube/liveroom/internal/repository/schedule/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type writableRepo interface {
	Repo
	SetRehearsal(ctx context.Context, songIDs []string) error
	SetSchedule(ctx context.Context, params *schedule.SetScheduleParams) error
}

func newTestService(t *testing.T) (*Service, writableRepo) {
	t.Helper()
	s := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rc.Close() })

	repo := scheduleRedis.NewRepo(rc)
	ctx := context.Background()
	require.NoError(t, repo.SetSchedule(ctx, &schedule.SetScheduleParams{
		MonthlyID: "2026-10",
		Name:      "October",
		Morning:   []string{"x", "y"},
		Evening:   []string{"z"},
	}))
	require.NoError(t, repo.SetRehearsal(ctx, []string{"y"}))
	require.NoError(t, repo.SetSong(ctx, &schedule.SetSongParams{SongID: "x", Title: "Song X", BPM: 96}))
	require.NoError(t, repo.SetSong(ctx, &schedule.SetSongParams{SongID: "y", Title: "Song Y"}))

	return NewService(repo), repo
}

func TestResolve(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	got, err := svc.Resolve(ctx, "morning_2026-10")
	require.NoError(t, err)
	assert.Equal(t, "October (morning)", got.DisplayName)
	assert.Equal(t, []string{"x", "y"}, got.ItemIDs)

	got, err = svc.Resolve(ctx, "evening_2026-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"z"}, got.ItemIDs)

	got, err = svc.Resolve(ctx, "rehearsal")
	require.NoError(t, err)
	assert.Equal(t, []string{"y"}, got.ItemIDs)
}

func TestResolveUnknownSchedule(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Resolve(context.Background(), "morning_1999-01")
	assert.ErrorIs(t, err, ErrUnresolvableSession)

	_, err = svc.Resolve(context.Background(), "garbage")
	assert.ErrorIs(t, err, ErrUnresolvableSession)
}

func TestLookup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	item, ok, err := svc.Lookup(ctx, "x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Song X", item.Title)
	require.NotNil(t, item.NominalBPM)
	assert.Equal(t, 96, *item.NominalBPM)

	item, ok, err = svc.Lookup(ctx, "y")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, item.NominalBPM, "unknown tempo")

	_, ok, err = svc.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWatchFiltersBySession(t *testing.T) {
	svc, repo := newTestService(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	done := make(chan error, 1)
	go func() {
		done <- svc.Watch(ctx, "morning_2026-10", func() { calls.Add(1) })
	}()

	// Publish until the subscription is registered.
	require.Eventually(t, func() bool {
		err := repo.SetSchedule(context.Background(), &schedule.SetScheduleParams{
			MonthlyID: "2026-10",
			Name:      "October",
			Morning:   []string{"y", "x"},
		})
		return err == nil && calls.Load() > 0
	}, time.Second, 20*time.Millisecond)

	time.Sleep(50 * time.Millisecond)
	before := calls.Load()
	require.NoError(t, repo.SetRehearsal(context.Background(), []string{"x"}))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, calls.Load(), "rehearsal changes do not affect a scheduled session")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watch did not return after cancel")
	}
}
