package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/liveroom/internal/repository/schedule"
)

const rehearsalKey = "rehearsal:items"

func (r repo) getScheduleKey(monthlyID string) string {
	return "schedule:" + monthlyID
}

func (r repo) getSlotKey(monthlyID, slot string) string {
	return "schedule:" + monthlyID + ":" + slot
}

func (r repo) SetSchedule(ctx context.Context, params *schedule.SetScheduleParams) error {
	pipe := r.rc.TxPipeline()

	morningKey := r.getSlotKey(params.MonthlyID, "morning")
	eveningKey := r.getSlotKey(params.MonthlyID, "evening")
	pipe.HSet(ctx, r.getScheduleKey(params.MonthlyID), "name", params.Name)
	pipe.Del(ctx, morningKey, eveningKey)
	if len(params.Morning) > 0 {
		pipe.RPush(ctx, morningKey, toArgs(params.Morning)...)
	}
	if len(params.Evening) > 0 {
		pipe.RPush(ctx, eveningKey, toArgs(params.Evening)...)
	}
	pipe.Publish(ctx, changesChannel, params.MonthlyID)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set schedule: %w", err)
	}

	return nil
}

func (r repo) GetSchedule(ctx context.Context, monthlyID string) (schedule.Schedule, error) {
	name, err := r.rc.HGet(ctx, r.getScheduleKey(monthlyID), "name").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return schedule.Schedule{}, schedule.ErrScheduleNotFound
		}
		return schedule.Schedule{}, fmt.Errorf("failed to get schedule: %w", err)
	}

	pipe := r.rc.Pipeline()
	morning := pipe.LRange(ctx, r.getSlotKey(monthlyID, "morning"), 0, -1)
	evening := pipe.LRange(ctx, r.getSlotKey(monthlyID, "evening"), 0, -1)
	if err := r.executePipe(ctx, pipe); err != nil {
		return schedule.Schedule{}, fmt.Errorf("failed to get schedule items: %w", err)
	}

	return schedule.Schedule{
		Name:    name,
		Morning: morning.Val(),
		Evening: evening.Val(),
	}, nil
}

func (r repo) RemoveSchedule(ctx context.Context, monthlyID string) error {
	pipe := r.rc.TxPipeline()
	del := pipe.Del(ctx,
		r.getScheduleKey(monthlyID),
		r.getSlotKey(monthlyID, "morning"),
		r.getSlotKey(monthlyID, "evening"),
	)
	pipe.Publish(ctx, changesChannel, monthlyID)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to remove schedule: %w", err)
	}

	if del.Val() == 0 {
		return schedule.ErrScheduleNotFound
	}

	return nil
}

func (r repo) SetRehearsal(ctx context.Context, songIDs []string) error {
	pipe := r.rc.TxPipeline()
	pipe.Del(ctx, rehearsalKey)
	if len(songIDs) > 0 {
		pipe.RPush(ctx, rehearsalKey, toArgs(songIDs)...)
	}
	pipe.Publish(ctx, changesChannel, schedule.ChangeRehearsal)

	if err := r.executePipe(ctx, pipe); err != nil {
		return fmt.Errorf("failed to set rehearsal: %w", err)
	}

	return nil
}

func (r repo) GetRehearsal(ctx context.Context) ([]string, error) {
	ids, err := r.rc.LRange(ctx, rehearsalKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get rehearsal: %w", err)
	}

	return ids, nil
}

func toArgs(ids []string) []interface{} {
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	return args
}
