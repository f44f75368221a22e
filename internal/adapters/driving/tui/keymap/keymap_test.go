package keymap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatches(t *testing.T) {
	km := DefaultKeyMap()

	assert.True(t, Matches("q", km.Quit))
	assert.True(t, Matches("ctrl+c", km.Quit))
	assert.False(t, Matches("x", km.Quit))

	assert.True(t, Matches("tab", km.Modality))
	assert.True(t, Matches("k", km.Up))
	assert.True(t, Matches("down", km.Down))
}

func TestHelpSets(t *testing.T) {
	km := DefaultKeyMap()

	assert.NotEmpty(t, km.InputHelp())
	assert.NotEmpty(t, km.ResultsHelp())
}
