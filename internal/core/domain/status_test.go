package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"staged to extracted", StatusStaged, StatusExtracted, true},
		{"extracted to embedded", StatusExtracted, StatusEmbedded, true},
		{"embedded to indexed", StatusEmbedded, StatusIndexed, true},
		{"staged to failed", StatusStaged, StatusFailed, true},
		{"extracted to failed", StatusExtracted, StatusFailed, true},
		{"embedded to failed", StatusEmbedded, StatusFailed, true},
		{"self transition", StatusEmbedded, StatusEmbedded, true},
		{"skip extracted", StatusStaged, StatusEmbedded, false},
		{"indexed before embedded", StatusExtracted, StatusIndexed, false},
		{"indexed is terminal", StatusIndexed, StatusFailed, false},
		{"failed is absorbing", StatusFailed, StatusStaged, false},
		{"backwards", StatusIndexed, StatusEmbedded, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.allowed, tc.from.CanTransition(tc.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusIndexed.Terminal())
	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusStaged.Terminal())
	assert.False(t, StatusExtracted.Terminal())
	assert.False(t, StatusEmbedded.Terminal())
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusStaged.Valid())
	assert.True(t, StatusFailed.Valid())
	assert.False(t, Status("pending").Valid())
	assert.False(t, Status("").Valid())
}
