package redis

import (
	"context"
	"fmt"

	"github.com/sharetube/liveroom/internal/repository/schedule"
)

func (r repo) getSongKey(songID string) string {
	return "song:" + songID
}

func (r repo) SetSong(ctx context.Context, params *schedule.SetSongParams) error {
	pipe := r.rc.TxPipeline()

	song := schedule.Song{
		Title:   params.Title,
		BPM:     params.BPM,
		Content: params.Content,
	}
	songKey := r.getSongKey(params.SongID)
	pipe.HSet(ctx, songKey, song)
	pipe.Publish(ctx, changesChannel, songKey)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set song: %w", err)
	}

	return nil
}

func (r repo) GetSong(ctx context.Context, songID string) (schedule.Song, error) {
	cmd := r.rc.HGetAll(ctx, r.getSongKey(songID))
	fields, err := cmd.Result()
	if err != nil {
		return schedule.Song{}, fmt.Errorf("failed to get song: %w", err)
	}

	if len(fields) == 0 {
		return schedule.Song{}, schedule.ErrSongNotFound
	}

	var song schedule.Song
	if err := cmd.Scan(&song); err != nil {
		return schedule.Song{}, fmt.Errorf("failed to scan song: %w", err)
	}

	return song, nil
}
