package session

import (
	"errors"
	"sync"

	"github.com/sharetube/liveroom/internal/clock"
)

var (
	ErrReadOnly = errors.New("session state is read-only for followers")
)

// Sink receives every snapshot produced by a host store.
type Sink interface {
	Schedule(State)
}

// TempoSource knows the nominal tempo of catalog items.
type TempoSource interface {
	NominalBPM(itemID string) (int, bool)
}

type Option func(*Store)

func WithClock(clk clock.Clock) Option {
	return func(s *Store) { s.clock = clk }
}

func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

func WithTempo(tempo TempoSource) Option {
	return func(s *Store) { s.tempo = tempo }
}

// Store holds the canonical state on the host and the replica on followers.
type Store struct {
	mu       sync.RWMutex
	state    State
	received bool
	host     bool

	clock clock.Clock
	sink  Sink
	tempo TempoSource
}

func NewHostStore(sessionID, hostID string, opts ...Option) *Store {
	s := &Store{
		state:    NewState(sessionID, hostID),
		received: true,
		host:     true,
		clock:    clock.Real{},
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func NewMirror() *Store {
	return &Store{clock: clock.Real{}}
}

func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// HasSnapshot reports whether the store holds state. Mirrors start empty
// until the first remote snapshot arrives.
func (s *Store) HasSnapshot() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.received
}

func (s *Store) IsHost() bool {
	return s.host
}

// SetActiveItem selects an item and clears per-item playback adjustments.
func (s *Store) SetActiveItem(itemID string) (State, error) {
	return s.mutate(func(st *State) {
		id := itemID
		st.ActiveItemID = &id
		st.TransposeOffset = 0
		st.ScrollState = ScrollState{IsScrolling: false, Speed: DefaultSpeed}
		st.MetronomeState.IsPlaying = false
		if s.tempo != nil {
			if bpm, ok := s.tempo.NominalBPM(itemID); ok {
				st.MetronomeState.BPM = ClampBPM(bpm)
			}
		}
	})
}

// SetTranspose sets the semitone offset applied to chord rendering.
func (s *Store) SetTranspose(offset int) (State, error) {
	return s.mutate(func(st *State) {
		st.TransposeOffset = offset
	})
}

// ShiftTranspose moves the offset by delta semitones.
func (s *Store) ShiftTranspose(delta int) (State, error) {
	return s.mutate(func(st *State) {
		st.TransposeOffset += delta
	})
}

func (s *Store) SetScroll(isScrolling bool, speed int) (State, error) {
	return s.mutate(func(st *State) {
		st.ScrollState = ScrollState{IsScrolling: isScrolling, Speed: ClampSpeed(speed)}
	})
}

func (s *Store) SetMetronome(isPlaying bool, bpm int) (State, error) {
	return s.mutate(func(st *State) {
		st.MetronomeState = MetronomeState{IsPlaying: isPlaying, BPM: ClampBPM(bpm)}
	})
}

// ApplyRemote replaces the mirror wholesale with a snapshot from the host.
func (s *Store) ApplyRemote(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
	s.received = true
}

func (s *Store) mutate(fn func(*State)) (State, error) {
	if !s.host {
		return State{}, ErrReadOnly
	}

	s.mu.Lock()
	next := s.state
	fn(&next)
	now := s.clock.Now().UnixMilli()
	if now > next.LastUpdate {
		next.LastUpdate = now
	}
	s.state = next
	sink := s.sink
	s.mu.Unlock()

	if sink != nil {
		sink.Schedule(next)
	}

	return next, nil
}
