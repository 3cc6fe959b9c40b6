package scheduler

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sharetube/liveroom/internal/clock"
	"github.com/sharetube/liveroom/internal/session"
)

// Clicker produces one short audible pulse.
type Clicker interface {
	Click() error
}

// ClickerFactory builds the audio primitive. It is called lazily on the first
// beat because some environments refuse audio output until then.
type ClickerFactory func() (Clicker, error)

var errStaleBeat = errors.New("beat superseded")

// BeatInterval is 60000/bpm milliseconds.
func BeatInterval(bpm int) time.Duration {
	return time.Minute / time.Duration(session.ClampBPM(bpm))
}

type MetronomeOption func(*Metronome)

func WithMetronomeLogger(logger *slog.Logger) MetronomeOption {
	return func(m *Metronome) { m.logger = logger }
}

// OnBeat is called after every beat, whether or not the click succeeded.
func OnBeat(fn func()) MetronomeOption {
	return func(m *Metronome) { m.onBeat = fn }
}

// Metronome fires clicks at the shared tempo while the shared intent says
// it is playing. Every (re)start clicks immediately.
type Metronome struct {
	clock      clock.Clock
	newClicker ClickerFactory
	logger     *slog.Logger
	onBeat     func()

	clickMu sync.Mutex
	clicker Clicker

	mu      sync.Mutex
	running bool
	bpm     int
	timer   clock.Timer
	gen     uint64
}

func NewMetronome(clk clock.Clock, newClicker ClickerFactory, opts ...MetronomeOption) *Metronome {
	m := &Metronome{
		clock:      clk,
		newClicker: newClicker,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Metronome) Sync(st session.MetronomeState) {
	m.mu.Lock()
	if !st.IsPlaying {
		m.stopLocked()
		m.mu.Unlock()
		return
	}
	if m.running && m.bpm == st.BPM {
		m.mu.Unlock()
		return
	}

	// A tempo change restarts the phase.
	m.running = true
	m.bpm = st.BPM
	gen := m.armLocked()
	m.mu.Unlock()

	m.beat(gen)
}

func (m *Metronome) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Metronome) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *Metronome) BPM() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bpm
}

func (m *Metronome) stopLocked() {
	m.running = false
	m.gen++
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Metronome) armLocked() uint64 {
	if m.timer != nil {
		m.timer.Stop()
	}
	m.gen++
	gen := m.gen
	m.timer = m.clock.AfterFunc(BeatInterval(m.bpm), func() { m.tick(gen) })

	return gen
}

func (m *Metronome) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running && gen == m.gen
}

func (m *Metronome) tick(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.running {
		m.mu.Unlock()
		return
	}
	next := m.armLocked()
	m.mu.Unlock()

	m.beat(next)
}

// beat clicks unless a stop or tempo change superseded gen after it was
// armed.
func (m *Metronome) beat(gen uint64) {
	if err := m.click(gen); err != nil {
		if errors.Is(err, errStaleBeat) {
			return
		}
		m.logger.Warn("metronome click failed", "error", err)
	}
	if m.onBeat != nil {
		m.onBeat()
	}
}

func (m *Metronome) click(gen uint64) error {
	m.clickMu.Lock()
	defer m.clickMu.Unlock()

	if m.clicker == nil {
		c, err := m.newClicker()
		if err != nil {
			return err
		}
		m.clicker = c
	}
	if !m.current(gen) {
		return errStaleBeat
	}

	return m.clicker.Click()
}
