package playlist

import "strings"

var (
	sharpNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	flatNames  = [12]string{"C", "Db", "D", "Eb", "E", "F", "Gb", "G", "Ab", "A", "Bb", "B"}
	naturals   = map[byte]int{'C': 0, 'D': 2, 'E': 4, 'F': 5, 'G': 7, 'A': 9, 'B': 11}
)

// Transpose shifts a chord symbol such as "F#m7/C#" by semitones, wrapping
// modulo 12. Flat spellings stay flat. Anything that is not a chord is
// returned unchanged.
func Transpose(chord string, semitones int) string {
	main, bass, hasBass := strings.Cut(chord, "/")

	out, ok := transposeNote(main, semitones)
	if !ok {
		return chord
	}
	if hasBass {
		b, ok := transposeNote(bass, semitones)
		if !ok {
			return chord
		}
		out += "/" + b
	}

	return out
}

func transposeNote(s string, semitones int) (string, bool) {
	if s == "" {
		return "", false
	}
	pitch, ok := naturals[s[0]]
	if !ok {
		return "", false
	}

	n := 1
	flat := false
	if len(s) > 1 {
		switch s[1] {
		case '#':
			pitch++
			n = 2
		case 'b':
			pitch--
			flat = true
			n = 2
		}
	}

	pitch = ((pitch+semitones)%12 + 12) % 12
	names := sharpNames
	if flat {
		names = flatNames
	}

	return names[pitch] + s[n:], true
}
