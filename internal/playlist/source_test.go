package playlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSessionID(t *testing.T) {
	tests := []struct {
		id   string
		want Source
	}{
		{"rehearsal", Rehearsal()},
		{"morning_2026-10", Scheduled("2026-10", SlotMorning)},
		{"evening_abc_def", Scheduled("abc_def", SlotEvening)},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseSessionID(tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.id, got.SessionID())
		})
	}
}

func TestParseSessionIDRejectsMalformed(t *testing.T) {
	for _, id := range []string{"", "noon_2026-10", "morning_", "morning", "Rehearsal"} {
		_, err := ParseSessionID(id)
		assert.ErrorIs(t, err, ErrUnresolvableSession, "id %q", id)
	}
}

func TestTranspose(t *testing.T) {
	tests := []struct {
		chord     string
		semitones int
		want      string
	}{
		{"C", 2, "D"},
		{"B", 1, "C"},
		{"C", -1, "B"},
		{"F#m7", 2, "G#m7"},
		{"Bb", 2, "C"},
		{"Eb", 1, "E"},
		{"Db", -2, "B"},
		{"G/B", 5, "C/E"},
		{"Am", 12, "Am"},
		{"Am", -25, "G#m"},
		{"N.C.", 3, "N.C."},
		{"", 3, ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Transpose(tt.chord, tt.semitones), "%s %+d", tt.chord, tt.semitones)
	}
}
