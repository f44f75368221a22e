package logger

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDebugRespectsVerbose(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Debug("hidden %d", 1)
	assert.Empty(t, buf.String())

	SetVerbose(true)
	defer SetVerbose(false)
	Debug("shown %d", 2)
	assert.Contains(t, buf.String(), "[DEBUG] shown 2")
}

func TestErrorAlwaysPrints(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(false)
	Error("boom: %s", "disk full")
	assert.Contains(t, buf.String(), "[ERROR] boom: disk full")
}

func TestSectionAndLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetVerbose(true)
	defer SetVerbose(false)

	Section("Staging")
	Info("info")
	Warn("warn")

	out := buf.String()
	assert.Contains(t, out, "=== Staging ===")
	assert.Contains(t, out, "[INFO] info")
	assert.Contains(t, out, "[WARN] warn")
	assert.True(t, IsVerbose())
}
