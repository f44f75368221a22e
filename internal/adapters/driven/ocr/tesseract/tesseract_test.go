package tesseract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, _ string, args ...string) ([]byte, error) {
	m.args = args
	return m.output, m.err
}

func TestRecognize(t *testing.T) {
	runner := &mockRunner{output: []byte("  hello world \n\n")}
	e := New(runner, "eng")

	text, err := e.Recognize(context.Background(), "/tmp/scan.png")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, []string{"/tmp/scan.png", "stdout", "-l", "eng"}, runner.args)
}

func TestRecognizeDefaultLanguage(t *testing.T) {
	runner := &mockRunner{output: []byte("x")}
	_, err := New(runner, "").Recognize(context.Background(), "/tmp/scan.png")
	require.NoError(t, err)
	assert.Equal(t, []string{"/tmp/scan.png", "stdout"}, runner.args)
}

func TestRecognizeError(t *testing.T) {
	runner := &mockRunner{err: errors.New("bad image")}
	_, err := New(runner, "eng").Recognize(context.Background(), "/tmp/scan.png")
	assert.ErrorContains(t, err, "bad image")
}
