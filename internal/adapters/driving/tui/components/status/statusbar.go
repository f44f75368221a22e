// Package status provides the status bar component for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// State represents the view state the bar reflects.
type State string

const (
	StateReady    State = "ready"
	StateQuerying State = "querying"
	StateResults  State = "results"
	StateError    State = "error"
)

// Bar displays view state, the active modality filter, and key hints.
type Bar struct {
	styles      *styles.Styles
	keymap      *keymap.KeyMap
	state       State
	message     string
	modality    domain.Modality
	resultCount int
	width       int
}

// NewBar creates a new status bar component.
func NewBar(s *styles.Styles, km *keymap.KeyMap) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}

	return &Bar{
		styles: s,
		keymap: km,
		state:  StateReady,
		width:  80,
	}
}

// View renders the status bar.
func (b *Bar) View() string {
	left := b.renderLeft()
	right := b.renderRight()

	padding := b.width - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}

	return b.styles.StatusBar.Width(b.width).Render(
		left + strings.Repeat(" ", padding) + right,
	)
}

// renderLeft renders the state and modality filter.
func (b *Bar) renderLeft() string {
	filter := "all"
	if b.modality != "" {
		filter = string(b.modality)
	}
	prefix := b.styles.Muted.Render("[" + filter + "] ")

	switch b.state {
	case StateQuerying:
		return prefix + b.styles.Muted.Render("Querying...")
	case StateError:
		if b.message != "" {
			return prefix + b.styles.Error.Render("Error: "+b.message)
		}
		return prefix + b.styles.Error.Render("Error")
	case StateResults:
		return prefix + b.styles.Normal.Render(fmt.Sprintf("%d results", b.resultCount))
	case StateReady:
	}
	return prefix + b.styles.Muted.Render("Ready")
}

// renderRight renders keybinding hints for the current state.
func (b *Bar) renderRight() string {
	var bindings []key.Binding
	if b.state == StateResults && b.resultCount > 0 {
		bindings = b.keymap.ResultsHelp()
	} else {
		bindings = b.keymap.InputHelp()
	}

	hints := make([]string, 0, len(bindings))
	for _, binding := range bindings {
		h := binding.Help()
		hints = append(hints, fmt.Sprintf("%s: %s", h.Key, h.Desc))
	}
	return b.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (b *Bar) SetState(state State) {
	b.state = state
}

// State returns the current state.
func (b *Bar) State() State {
	return b.state
}

// SetMessage sets a custom message, shown in the error state.
func (b *Bar) SetMessage(message string) {
	b.message = message
}

// SetModality sets the displayed modality filter. Empty means all.
func (b *Bar) SetModality(m domain.Modality) {
	b.modality = m
}

// SetResultCount sets the result count.
func (b *Bar) SetResultCount(count int) {
	b.resultCount = count
}

// SetWidth sets the status bar width.
func (b *Bar) SetWidth(width int) {
	b.width = width
}

// Clear resets the status bar to its initial state.
func (b *Bar) Clear() {
	b.state = StateReady
	b.message = ""
	b.resultCount = 0
}
