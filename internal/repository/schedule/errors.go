package schedule

import "errors"

var (
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrSongNotFound     = errors.New("song not found")
)
