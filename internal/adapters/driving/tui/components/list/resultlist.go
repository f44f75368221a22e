// Package list provides the result list component for the TUI.
package list

import (
	"fmt"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// ResultList displays query results in a navigable list.
type ResultList struct {
	results  []domain.QueryResult
	selected int
	styles   *styles.Styles
	width    int
	height   int
}

// NewResultList creates a new result list component.
func NewResultList(s *styles.Styles) *ResultList {
	if s == nil {
		s = styles.DefaultStyles()
	}

	return &ResultList{
		styles: s,
		width:  80,
		height: 10,
	}
}

// Init initialises the result list.
func (r *ResultList) Init() tea.Cmd {
	return nil
}

// Update handles list navigation messages.
func (r *ResultList) Update(msg tea.Msg) (*ResultList, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "up", "k":
			r.MoveUp()
		case "down", "j":
			r.MoveDown()
		}
	}
	return r, nil
}

// View renders the result list.
func (r *ResultList) View() string {
	if len(r.results) == 0 {
		return r.styles.Muted.Render("No results")
	}

	lines := make([]string, 0, len(r.results)*2+2)
	header := r.styles.Subtitle.Render(fmt.Sprintf("Results (%d)", len(r.results)))
	lines = append(lines, header, "")

	// Each result takes two lines plus spacing.
	visibleCount := (r.height - 4) / 3
	if visibleCount < 1 {
		visibleCount = 1
	}

	start := 0
	if r.selected >= visibleCount {
		start = r.selected - visibleCount + 1
	}
	end := start + visibleCount
	if end > len(r.results) {
		end = len(r.results)
	}

	for i := start; i < end; i++ {
		lines = append(lines, r.renderResult(i, &r.results[i]))
	}

	return strings.Join(lines, "\n")
}

// renderResult formats a single hit: source and score, then a snippet.
func (r *ResultList) renderResult(index int, result *domain.QueryResult) string {
	indicator := "  "
	if index == r.selected {
		indicator = "> "
	}

	title := filepath.Base(result.Document.Source)
	if title == "" || title == "." {
		title = result.Document.ID
	}

	maxTitleLen := r.width - 24
	if maxTitleLen < 10 {
		maxTitleLen = 10
	}
	if len(title) > maxTitleLen {
		title = title[:maxTitleLen-3] + "..."
	}

	score := fmt.Sprintf("%.3f", result.Score)
	kind := string(result.Unit.Modality)

	var titleLine string
	if index == r.selected {
		titleLine = r.styles.Selected.Render(fmt.Sprintf("%s%-*s %s %s", indicator, maxTitleLen, title, kind, score))
	} else {
		titleLine = r.styles.Normal.Render(fmt.Sprintf("%s%-*s ", indicator, maxTitleLen, title)) +
			r.styles.Muted.Render(kind+" "+score)
	}

	return titleLine + "\n" + r.styles.Muted.Render("    "+r.snippet(result))
}

// snippet picks the preview text for a hit: unit text for text units,
// the archived image name for image units.
func (r *ResultList) snippet(result *domain.QueryResult) string {
	preview := strings.Join(strings.Fields(result.Unit.Text), " ")
	if result.Unit.Modality == domain.ModalityImage {
		preview = "[image] " + filepath.Base(result.Unit.ImageRef)
	}

	maxLen := r.width - 6
	if maxLen < 20 {
		maxLen = 20
	}
	if len(preview) > maxLen {
		preview = preview[:maxLen-3] + "..."
	}
	return preview
}

// SetResults updates the result list and resets the selection.
func (r *ResultList) SetResults(results []domain.QueryResult) {
	r.results = results
	r.selected = 0
}

// Results returns the current results.
func (r *ResultList) Results() []domain.QueryResult {
	return r.results
}

// Selected returns the index of the selected result.
func (r *ResultList) Selected() int {
	return r.selected
}

// SelectedResult returns the currently selected result, or nil if none.
func (r *ResultList) SelectedResult() *domain.QueryResult {
	if len(r.results) == 0 || r.selected < 0 || r.selected >= len(r.results) {
		return nil
	}
	return &r.results[r.selected]
}

// MoveUp moves selection up.
func (r *ResultList) MoveUp() {
	if r.selected > 0 {
		r.selected--
	}
}

// MoveDown moves selection down.
func (r *ResultList) MoveDown() {
	if r.selected < len(r.results)-1 {
		r.selected++
	}
}

// SetDimensions sets the component dimensions.
func (r *ResultList) SetDimensions(width, height int) {
	r.width = width
	r.height = height
}

// Count returns the number of results.
func (r *ResultList) Count() int {
	return len(r.results)
}
