package input

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
)

func TestQueryInputValue(t *testing.T) {
	q := NewQueryInput(nil)
	assert.Empty(t, q.Value())
	assert.True(t, q.Focused(), "focused on creation")

	q.SetValue("sunset over water")
	assert.Equal(t, "sunset over water", q.Value())

	q.Blur()
	assert.False(t, q.Focused())
	q.Focus()
	assert.True(t, q.Focused())
}

func TestQueryInputTyping(t *testing.T) {
	q := NewQueryInput(nil)
	q, _ = q.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	assert.Equal(t, "hi", q.Value())
}

func TestQueryInputWidthFloor(t *testing.T) {
	q := NewQueryInput(nil)
	q.SetWidth(5)
	assert.Equal(t, 5, q.Width())
	// inner width never collapses below the floor
	assert.Contains(t, q.View(), "Query:")
}
