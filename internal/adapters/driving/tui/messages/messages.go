// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/librarian-cli/internal/core/domain"
)

// QueryCompleted carries ranked results back to the model.
type QueryCompleted struct {
	Query   string
	Results []domain.QueryResult
	Err     error
}

// ErrorOccurred signals that an error happened outside a query.
type ErrorOccurred struct {
	Err error
}
