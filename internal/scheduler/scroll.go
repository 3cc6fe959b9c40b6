package scheduler

import (
	"sync"
	"time"

	"github.com/sharetube/liveroom/internal/clock"
	"github.com/sharetube/liveroom/internal/session"
)

// TickInterval is the auto-scroll period for a speed in [1,10]: 138ms at
// speed 1 down to 21ms at speed 10.
func TickInterval(speed int) time.Duration {
	return time.Duration(151-session.ClampSpeed(speed)*13) * time.Millisecond
}

type ScrollOption func(*Scroll)

// OnMove is called with the new position after every advance or reset.
func OnMove(fn func(pos int)) ScrollOption {
	return func(s *Scroll) { s.onMove = fn }
}

// OnFinished is called when scrolling stops by reaching the end.
func OnFinished(fn func()) ScrollOption {
	return func(s *Scroll) { s.onFinished = fn }
}

// Scroll advances a local scroll position while the shared intent says the
// view is scrolling. It is Idle or Running and owns at most one timer.
type Scroll struct {
	clock      clock.Clock
	onMove     func(int)
	onFinished func()

	mu      sync.Mutex
	want    bool
	speed   int
	running bool
	pos     int
	max     int
	timer   clock.Timer
	gen     uint64
}

func NewScroll(clk clock.Clock, opts ...ScrollOption) *Scroll {
	s := &Scroll{clock: clk, speed: session.DefaultSpeed}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Sync reconciles the scheduler with the latest scroll intent. Starting is
// edge-triggered: a scheduler that stopped at the end stays Idle until the
// intent goes false and true again.
func (s *Scroll) Sync(st session.ScrollState) {
	s.mu.Lock()

	prevWant := s.want
	s.want = st.IsScrolling
	speedChanged := st.Speed != s.speed
	s.speed = st.Speed

	var moved bool
	switch {
	case !st.IsScrolling:
		s.stopLocked()
	case !prevWant:
		if s.pos >= s.max {
			s.pos = 0
			moved = true
		}
		s.running = true
		s.armLocked()
	case s.running && speedChanged:
		s.armLocked()
	}
	pos := s.pos
	s.mu.Unlock()

	if moved {
		s.emitMove(pos)
	}
}

// SetMaxOffset updates the largest reachable position, as measured by the
// view.
func (s *Scroll) SetMaxOffset(max int) {
	if max < 0 {
		max = 0
	}

	s.mu.Lock()
	s.max = max
	s.mu.Unlock()
}

// Reset stops scrolling and snaps back to the top. Used on item and tab
// changes.
func (s *Scroll) Reset() {
	s.mu.Lock()
	s.stopLocked()
	s.pos = 0
	s.mu.Unlock()

	s.emitMove(0)
}

// Stop halts the tick timer without touching the position.
func (s *Scroll) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scroll) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *Scroll) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Scroll) stopLocked() {
	s.running = false
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scroll) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(TickInterval(s.speed), func() { s.tick(gen) })
}

func (s *Scroll) tick(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || !s.running {
		s.mu.Unlock()
		return
	}
	s.timer = nil

	finished := false
	moved := false
	if s.pos < s.max {
		s.pos++
		moved = true
	}
	if s.pos >= s.max {
		s.stopLocked()
		finished = true
	} else {
		s.armLocked()
	}
	pos := s.pos
	s.mu.Unlock()

	if moved {
		s.emitMove(pos)
	}
	if finished && s.onFinished != nil {
		s.onFinished()
	}
}

func (s *Scroll) emitMove(pos int) {
	if s.onMove != nil {
		s.onMove(pos)
	}
}
