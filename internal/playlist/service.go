package playlist

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sharetube/liveroom/internal/repository/schedule"
)

type Repo interface {
	GetSong(ctx context.Context, songID string) (schedule.Song, error)
	GetSchedule(ctx context.Context, monthlyID string) (schedule.Schedule, error)
	GetRehearsal(ctx context.Context) ([]string, error)
	SubscribeChanges(ctx context.Context) (<-chan string, error)
}

type Service struct {
	repo Repo
}

func NewService(repo Repo) *Service {
	return &Service{repo: repo}
}

func (s Service) Resolve(ctx context.Context, sessionID string) (Resolved, error) {
	src, err := ParseSessionID(sessionID)
	if err != nil {
		return Resolved{}, err
	}

	if src.Kind == KindRehearsal {
		ids, err := s.repo.GetRehearsal(ctx)
		if err != nil {
			return Resolved{}, fmt.Errorf("failed to resolve rehearsal: %w", err)
		}

		return Resolved{DisplayName: "Rehearsal", ItemIDs: ids}, nil
	}

	sched, err := s.repo.GetSchedule(ctx, src.MonthlyID)
	if err != nil {
		if errors.Is(err, schedule.ErrScheduleNotFound) {
			return Resolved{}, fmt.Errorf("%w: %s", ErrUnresolvableSession, err)
		}
		return Resolved{}, fmt.Errorf("failed to resolve schedule: %w", err)
	}

	ids := sched.Morning
	if src.Slot == SlotEvening {
		ids = sched.Evening
	}

	return Resolved{
		DisplayName: sched.Name + " (" + string(src.Slot) + ")",
		ItemIDs:     ids,
	}, nil
}

func (s Service) Lookup(ctx context.Context, itemID string) (Item, bool, error) {
	song, err := s.repo.GetSong(ctx, itemID)
	if err != nil {
		if errors.Is(err, schedule.ErrSongNotFound) {
			return Item{}, false, nil
		}
		return Item{}, false, fmt.Errorf("failed to lookup item: %w", err)
	}

	item := Item{
		ID:      itemID,
		Title:   song.Title,
		Content: song.Content,
	}
	if song.BPM > 0 {
		bpm := song.BPM
		item.NominalBPM = &bpm
	}

	return item, true, nil
}

func (s Service) Watch(ctx context.Context, sessionID string, onChange func()) error {
	src, err := ParseSessionID(sessionID)
	if err != nil {
		return err
	}

	changes, err := s.repo.SubscribeChanges(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch playlist: %w", err)
	}

	scope := src.scope()
	for change := range changes {
		if change == scope || strings.HasPrefix(change, "song:") {
			onChange()
		}
	}

	return nil
}
