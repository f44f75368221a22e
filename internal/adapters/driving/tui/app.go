// Package tui implements the interactive query view on top of Bubbletea.
// One screen: a query input, a navigable result list, and a status bar.
package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/components/input"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/components/list"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driving"
)

// ErrNoQueryService is returned when the app is built without a query
// service.
var ErrNoQueryService = errors.New("query service not configured")

// queryLimit is how many results the interactive view requests.
const queryLimit = 10

// Ports holds the driving-side services the TUI talks to.
type Ports struct {
	Query driving.QueryService
}

// modalityCycle is the order the tab key walks through. Empty means
// cross-modal, the default.
var modalityCycle = []domain.Modality{"", domain.ModalityText, domain.ModalityImage}

// App is the root Bubbletea model.
type App struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	input     *input.QueryInput
	list      *list.ResultList
	statusbar *status.Bar

	ports *Ports
	ctx   context.Context

	width      int
	height     int
	ready      bool
	focusInput bool
	modality   int // index into modalityCycle
	err        error
}

// NewApp creates the root model.
func NewApp(ports *Ports) (*App, error) {
	if ports == nil || ports.Query == nil {
		return nil, ErrNoQueryService
	}

	s := styles.DefaultStyles()
	km := keymap.DefaultKeyMap()
	return &App{
		styles:     s,
		keymap:     km,
		input:      input.NewQueryInput(s),
		list:       list.NewResultList(s),
		statusbar:  status.NewBar(s, km),
		ports:      ports,
		ctx:        context.Background(),
		width:      80,
		height:     24,
		focusInput: true,
	}, nil
}

// WithContext sets the context queries run under.
func (a *App) WithContext(ctx context.Context) *App {
	if ctx != nil {
		a.ctx = ctx
	}
	return a
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return a.input.Init()
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.setDimensions(msg.Width, msg.Height)
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case messages.QueryCompleted:
		a.handleQueryCompleted(msg)
		return a, nil

	case messages.ErrorOccurred:
		a.err = msg.Err
		a.statusbar.SetState(status.StateError)
		a.statusbar.SetMessage(msg.Err.Error())
		return a, nil
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	return a, cmd
}

// handleKey processes keyboard input in both focus modes.
func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	keyStr := msg.String()

	// ctrl+c always quits; plain q only outside the input box.
	if keyStr == "ctrl+c" || (!a.focusInput && keymap.Matches(keyStr, a.keymap.Quit)) {
		return a, tea.Quit
	}

	if keymap.Matches(keyStr, a.keymap.Modality) {
		a.modality = (a.modality + 1) % len(modalityCycle)
		a.statusbar.SetModality(modalityCycle[a.modality])
		return a, nil
	}

	if a.focusInput {
		if msg.Type == tea.KeyEnter {
			query := a.input.Value()
			if query == "" {
				return a, nil
			}
			a.statusbar.SetState(status.StateQuerying)
			a.focusInput = false
			a.input.Blur()
			return a, a.runQuery(query)
		}
		var cmd tea.Cmd
		a.input, cmd = a.input.Update(msg)
		return a, cmd
	}

	switch {
	case keymap.Matches(keyStr, a.keymap.Up):
		a.list.MoveUp()
	case keymap.Matches(keyStr, a.keymap.Down):
		a.list.MoveDown()
	case keymap.Matches(keyStr, a.keymap.NewQuery):
		a.focusInput = true
		a.input.SetValue("")
		return a, a.input.Focus()
	case keymap.Matches(keyStr, a.keymap.Back):
		a.focusInput = true
		return a, a.input.Focus()
	}
	return a, nil
}

// runQuery executes the query off the update loop.
func (a *App) runQuery(query string) tea.Cmd {
	modality := modalityCycle[a.modality]
	return func() tea.Msg {
		results, err := a.ports.Query.QueryText(a.ctx, query, domain.QueryOptions{
			Limit:    queryLimit,
			Modality: modality,
		})
		return messages.QueryCompleted{Query: query, Results: results, Err: err}
	}
}

// handleQueryCompleted folds results or the failure into the view.
func (a *App) handleQueryCompleted(msg messages.QueryCompleted) {
	if msg.Err != nil {
		a.err = msg.Err
		a.statusbar.SetState(status.StateError)
		a.statusbar.SetMessage(msg.Err.Error())
		a.focusInput = true
		a.input.Focus()
		return
	}

	a.err = nil
	a.list.SetResults(msg.Results)
	a.statusbar.SetState(status.StateResults)
	a.statusbar.SetResultCount(len(msg.Results))
}

// View implements tea.Model.
func (a *App) View() string {
	if !a.ready {
		return "Loading..."
	}

	sections := []string{
		a.styles.Title.Render("Librarian"),
		"",
		a.input.View(),
		"",
	}
	if a.err != nil {
		sections = append(sections, a.styles.Error.Render("Error: "+a.err.Error()), "")
	}
	sections = append(sections, a.list.View(), "", a.statusbar.View())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// setDimensions distributes space to the components.
func (a *App) setDimensions(width, height int) {
	a.width = width
	a.height = height
	a.ready = true

	a.input.SetWidth(width)
	a.list.SetDimensions(width, height-8)
	a.statusbar.SetWidth(width)
}

// Modality returns the active modality filter. Empty means cross-modal.
func (a *App) Modality() domain.Modality {
	return modalityCycle[a.modality]
}

// InputFocused reports whether the query input has focus.
func (a *App) InputFocused() bool {
	return a.focusInput
}

// Results returns the current result set.
func (a *App) Results() []domain.QueryResult {
	return a.list.Results()
}

// Err returns the last query error, if any.
func (a *App) Err() error {
	return a.err
}
