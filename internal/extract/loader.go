package extract

import (
	"context"
	"log/slog"
	"strings"

	"github.com/docassist/docassist/internal/document"
)

// PageExtractor extracts the page texts of one PDF file.
type PageExtractor interface {
	ExtractPages(ctx context.Context, path string) ([]document.Page, error)
}

// Loader extracts page text from a PDF, falling back to OCR when the text
// layer is empty (scanned documents).
type Loader struct {
	text PageExtractor
	ocr  PageExtractor
}

// NewLoader creates a loader with the given primary and OCR extractors.
// ocr may be nil to disable the fallback.
func NewLoader(text, ocr PageExtractor) *Loader {
	return &Loader{text: text, ocr: ocr}
}

// Config groups the external tool settings for NewDefaultLoader.
type Config struct {
	PDFToText string
	PDFToPPM  string
	Tesseract string
	OCRDPI    int
}

// NewDefaultLoader creates a loader backed by the real external tools.
func NewDefaultLoader(cfg Config) *Loader {
	runner := ExecRunner{}
	return NewLoader(
		NewPDFTextExtractor(runner, cfg.PDFToText),
		NewOCRExtractor(runner, cfg.PDFToPPM, cfg.Tesseract, cfg.OCRDPI),
	)
}

// Load extracts the pages of the PDF at path. When the text layer yields no
// non-whitespace characters at all, the OCR fallback runs instead.
func (l *Loader) Load(ctx context.Context, path string) ([]document.Page, error) {
	pages, err := l.text.ExtractPages(ctx, path)
	if err != nil {
		return nil, err
	}

	if hasText(pages) || l.ocr == nil {
		return pages, nil
	}

	slog.Info("no text layer found, falling back to OCR", slog.String("path", path))
	return l.ocr.ExtractPages(ctx, path)
}

// hasText reports whether any page contains a non-whitespace character.
func hasText(pages []document.Page) bool {
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			return true
		}
	}
	return false
}
