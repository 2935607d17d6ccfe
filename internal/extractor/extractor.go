// Package extractor converts raw file bytes into plain text. The extraction
// method is dispatched on the file extension: PDF and DOCX get format-aware
// handling, TXT and Markdown are decoded as UTF-8 with normalised line
// endings. Extraction is a pure function of its inputs.
package extractor

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrUnsupportedType is returned when the file extension is not one the
// extractor knows how to handle. Callers treat this as a non-retryable
// validation failure.
var ErrUnsupportedType = errors.New("extractor: unsupported file type")

// ErrNoText is returned when extraction succeeds mechanically but yields no
// non-whitespace content. Equivalent to an empty input further down the
// pipeline.
var ErrNoText = errors.New("extractor: no text content")

// Extractor converts file bytes plus a filename into plain text.
// Implementations must be stateless and safe for concurrent use.
type Extractor interface {
	// Extract returns the plain-text content of the file.
	Extract(filename string, data []byte) (string, error)
}

// Default is the stateless extractor dispatching on file extension.
// Supported: .pdf, .docx, .txt, .md.
type Default struct{}

// New returns the default extension-dispatching extractor.
func New() *Default { return &Default{} }

// Extract detects the file type from the filename and extracts plain text.
func (d *Default) Extract(filename string, data []byte) (string, error) {
	switch strings.ToLower(path.Ext(filename)) {
	case ".pdf":
		return extractPDF(data)
	case ".docx":
		return extractDOCX(data)
	case ".txt", ".md":
		return extractPlain(data)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filename)
	}
}

// extractPlain decodes TXT or Markdown bytes, dropping trailing whitespace
// per line and normalising CRLF line endings.
func extractPlain(data []byte) (string, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return finish(strings.Join(lines, "\n"))
}

// finish trims the extracted text and maps whitespace-only output to ErrNoText.
func finish(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
