package extract

import (
	"context"
	"strings"

	"github.com/docassist/docassist/internal/document"
)

// PDFTextExtractor extracts embedded text from a PDF using pdftotext.
type PDFTextExtractor struct {
	runner CommandRunner
	tool   string
}

// NewPDFTextExtractor creates a pdftotext-backed extractor. tool is the
// binary name or path, normally "pdftotext".
func NewPDFTextExtractor(runner CommandRunner, tool string) *PDFTextExtractor {
	if tool == "" {
		tool = "pdftotext"
	}
	return &PDFTextExtractor{runner: runner, tool: tool}
}

// ExtractPages returns one Page per PDF page. pdftotext separates pages with
// form feeds on stdout; page numbers are zero-based.
func (e *PDFTextExtractor) ExtractPages(ctx context.Context, path string) ([]document.Page, error) {
	out, err := e.runner.Run(ctx, e.tool, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, err
	}

	raw := strings.Split(string(out), "\f")
	// pdftotext emits a trailing form feed after the last page
	if len(raw) > 1 && strings.TrimSpace(raw[len(raw)-1]) == "" {
		raw = raw[:len(raw)-1]
	}

	pages := make([]document.Page, len(raw))
	for i, text := range raw {
		pages[i] = document.Page{Number: i, Text: text}
	}
	return pages, nil
}
