// Package pdf extracts text from PDF documents using the poppler pdftotext tool.
package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/custodia-labs/docuchat/internal/core/domain"
	"github.com/custodia-labs/docuchat/internal/core/ports/driven"
)

// MIMEType is the registered media type of PDF files.
const MIMEType = "application/pdf"

const toolName = "pdftotext"

// ErrPDFToolNotFound is returned when pdftotext is not on PATH.
var ErrPDFToolNotFound = errors.New("pdftotext not found in PATH")

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// CommandRunner runs an external command and returns its stdout.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil && stderr.Len() > 0 {
		return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return out, err
}

// Extractor handles PDF documents.
type Extractor struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
}

// New creates a PDF extractor that runs the installed pdftotext.
func New() *Extractor {
	return NewWithRunner(execRunner{})
}

// NewWithRunner creates a PDF extractor with a custom command runner.
func NewWithRunner(runner CommandRunner) *Extractor {
	return &Extractor{runner: runner, lookPath: exec.LookPath}
}

// SupportedMIMETypes returns the MIME types this extractor handles.
func (e *Extractor) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

// CheckAvailable reports whether pdftotext can be found.
func CheckAvailable() error {
	return New().available()
}

func (e *Extractor) available() error {
	if _, err := e.lookPath(toolName); err != nil {
		return ErrPDFToolNotFound
	}
	return nil
}

// InstallInstructions describes how to install pdftotext.
func InstallInstructions() string {
	return `PDF extraction needs pdftotext from poppler:
  macOS:          brew install poppler
  Debian/Ubuntu:  sudo apt install poppler-utils
  Fedora:         sudo dnf install poppler-utils`
}

// Extract returns the text of a PDF, one line per text line, with page
// breaks turned into blank lines.
//
// Without pdftotext the PDF is reported as an unsupported type, so the
// document is still stored, without content.
func (e *Extractor) Extract(ctx context.Context, content []byte) (string, error) {
	if err := e.available(); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnsupportedType, err)
	}
	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return "", fmt.Errorf("%w: not a PDF file", domain.ErrInvalidInput)
	}

	tmp, err := os.CreateTemp("", "docuchat-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(content)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", fmt.Errorf("write temp file: %w", err)
	}

	out, err := e.runner.Run(ctx, toolName, "-enc", "UTF-8", "-layout", tmp.Name(), "-")
	if err != nil {
		return "", fmt.Errorf("pdftotext failed: %w", err)
	}
	return cleanText(string(out)), nil
}

// cleanText normalises line endings, replaces form feeds with blank lines
// and trims trailing spaces left by layout mode.
func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\f", "\n\n")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
