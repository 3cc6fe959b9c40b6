package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	assert.True(t, NewSet(ManagePlaylists).Can(ManagePlaylists))
	assert.False(t, NewSet().Can(ManagePlaylists))
	assert.False(t, Set(nil).Can(ManagePlaylists))
}
