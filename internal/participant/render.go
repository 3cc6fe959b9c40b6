package participant

import (
	"regexp"
	"strings"

	"github.com/sharetube/liveroom/internal/playlist"
)

// lineHeight is the scroll distance of one rendered line.
const lineHeight = 24

var chordPattern = regexp.MustCompile(`\[([^\]\s]+)\]`)

// Render transposes every bracketed chord of a song body, e.g.
// "[G]Amazing [D/F#]grace" by 2 becomes "[A]Amazing [E/G#]grace".
func Render(content string, semitones int) string {
	if semitones == 0 {
		return content
	}

	return chordPattern.ReplaceAllStringFunc(content, func(m string) string {
		return "[" + playlist.Transpose(m[1:len(m)-1], semitones) + "]"
	})
}

// maxScroll is how far the rendered body can scroll.
func maxScroll(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") * lineHeight
}
