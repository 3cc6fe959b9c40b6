package session

import (
	"golang.org/x/exp/constraints"
)

const (
	MinSpeed     = 1
	MaxSpeed     = 10
	DefaultSpeed = 5

	MinBPM     = 30
	MaxBPM     = 300
	DefaultBPM = 120
)

type ScrollState struct {
	IsScrolling bool `json:"isScrolling"`
	Speed       int  `json:"speed"`
}

type MetronomeState struct {
	IsPlaying bool `json:"isPlaying"`
	BPM       int  `json:"bpm"`
}

// State is one complete snapshot of what a live room is showing. Values are
// never mutated after they leave the store.
type State struct {
	SessionID       string         `json:"sessionId"`
	HostID          string         `json:"hostId"`
	ActiveItemID    *string        `json:"activeItemId"`
	TransposeOffset int            `json:"transposeOffset"`
	ScrollState     ScrollState    `json:"scrollState"`
	MetronomeState  MetronomeState `json:"metronomeState"`
	LastUpdate      int64          `json:"lastUpdate"`
}

func NewState(sessionID, hostID string) State {
	return State{
		SessionID:   sessionID,
		HostID:      hostID,
		ScrollState: ScrollState{Speed: DefaultSpeed},
		MetronomeState: MetronomeState{
			BPM: DefaultBPM,
		},
	}
}

// ActiveItem returns the active item id and whether one is selected.
func (s State) ActiveItem() (string, bool) {
	if s.ActiveItemID == nil {
		return "", false
	}
	return *s.ActiveItemID, true
}

func clamp[T constraints.Integer](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func ClampSpeed(speed int) int {
	return clamp(speed, MinSpeed, MaxSpeed)
}

func ClampBPM(bpm int) int {
	return clamp(bpm, MinBPM, MaxBPM)
}
