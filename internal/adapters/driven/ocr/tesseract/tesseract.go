// Package tesseract provides OCR via the tesseract command line tool.
package tesseract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/librarian-cli/internal/adapters/driven/command"
	"github.com/custodia-labs/librarian-cli/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// ErrTesseractNotFound indicates the tesseract binary is not installed.
var ErrTesseractNotFound = errors.New("tesseract not found in PATH (install with 'brew install tesseract' or 'apt install tesseract-ocr')")

// Engine shells out to tesseract for text recognition.
type Engine struct {
	runner   driven.CommandRunner
	language string
}

// New creates a tesseract engine. language is a tesseract language code
// such as "eng"; empty uses tesseract's default.
func New(runner driven.CommandRunner, language string) *Engine {
	return &Engine{runner: runner, language: language}
}

// CheckAvailable verifies tesseract is installed.
func CheckAvailable() error {
	if err := command.CheckAvailable("tesseract"); err != nil {
		return ErrTesseractNotFound
	}
	return nil
}

// Recognize runs tesseract over the image and returns the recognised text.
func (e *Engine) Recognize(ctx context.Context, imagePath string) (string, error) {
	args := []string{imagePath, "stdout"}
	if e.language != "" {
		args = append(args, "-l", e.language)
	}
	out, err := e.runner.Run(ctx, "tesseract", args...)
	if err != nil {
		return "", fmt.Errorf("recognising text: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
