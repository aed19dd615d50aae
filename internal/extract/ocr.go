package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/docassist/docassist/internal/document"
)

// OCRExtractor rasterizes PDF pages with pdftoppm and recognizes text with
// tesseract. Used for scanned documents with no embedded text layer.
type OCRExtractor struct {
	runner    CommandRunner
	pdftoppm  string
	tesseract string
	dpi       int
}

// NewOCRExtractor creates an OCR extractor. Empty tool names default to
// "pdftoppm" and "tesseract"; dpi defaults to 300.
func NewOCRExtractor(runner CommandRunner, pdftoppm, tesseract string, dpi int) *OCRExtractor {
	if pdftoppm == "" {
		pdftoppm = "pdftoppm"
	}
	if tesseract == "" {
		tesseract = "tesseract"
	}
	if dpi <= 0 {
		dpi = 300
	}
	return &OCRExtractor{runner: runner, pdftoppm: pdftoppm, tesseract: tesseract, dpi: dpi}
}

// ExtractPages renders each page to a temp PNG and runs OCR over it. Page
// numbers are zero-based and follow pdftoppm's output ordering.
func (e *OCRExtractor) ExtractPages(ctx context.Context, path string) ([]document.Page, error) {
	tmpDir, err := os.MkdirTemp("", "docassist-ocr-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	prefix := filepath.Join(tmpDir, "page")
	if _, err := e.runner.Run(ctx, e.pdftoppm,
		"-r", strconv.Itoa(e.dpi), "-png", path, prefix); err != nil {
		return nil, err
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to list rendered pages: %w", err)
	}
	sort.Strings(images)

	pages := make([]document.Page, 0, len(images))
	for i, img := range images {
		out, err := e.runner.Run(ctx, e.tesseract, img, "stdout")
		if err != nil {
			return nil, fmt.Errorf("ocr failed on page %d: %w", i, err)
		}
		pages = append(pages, document.Page{Number: i, Text: string(out)})
	}
	return pages, nil
}
