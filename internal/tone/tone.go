package tone

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

const (
	SampleRate = 44100
	Frequency  = 880.0
	Duration   = 50 * time.Millisecond

	// decay shapes the envelope so the pulse is percussive rather than a
	// sustained tone.
	decay = 60.0
)

// Pulse renders one click as signed 16-bit little-endian mono PCM.
func Pulse(sampleRate int, frequency float64, d time.Duration) []byte {
	n := int(float64(sampleRate) * d.Seconds())
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		v := math.Sin(2*math.Pi*frequency*t) * math.Exp(-decay*t)
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v*math.MaxInt16*0.8)))
	}

	return buf
}

// Clicker writes a precomputed pulse to a PCM sink, such as the stdin of an
// audio player process.
type Clicker struct {
	mu    sync.Mutex
	w     io.Writer
	pulse []byte
}

func NewClicker(w io.Writer) *Clicker {
	return &Clicker{w: w, pulse: Pulse(SampleRate, Frequency, Duration)}
}

func (c *Clicker) Click() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(c.pulse); err != nil {
		return fmt.Errorf("failed to write pulse: %w", err)
	}

	return nil
}
