package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docassist/docassist/internal/document"
)

// mockRunner returns scripted output per tool name.
type mockRunner struct {
	outputs map[string][]byte
	errs    map[string]error
	calls   []string
	onRun   func(name string, args []string)
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.calls = append(m.calls, name)
	if m.onRun != nil {
		m.onRun(name, args)
	}
	if err, ok := m.errs[name]; ok {
		return nil, err
	}
	return m.outputs[name], nil
}

func TestPDFTextExtractor_SplitsPagesOnFormFeed(t *testing.T) {
	// Given: pdftotext output with two pages and a trailing form feed
	runner := &mockRunner{outputs: map[string][]byte{
		"pdftotext": []byte("page one text\fpage two text\f"),
	}}
	e := NewPDFTextExtractor(runner, "")

	pages, err := e.ExtractPages(context.Background(), "doc.pdf")
	require.NoError(t, err)

	require.Len(t, pages, 2)
	assert.Equal(t, 0, pages[0].Number)
	assert.Equal(t, "page one text", pages[0].Text)
	assert.Equal(t, 1, pages[1].Number)
	assert.Equal(t, "page two text", pages[1].Text)
}

func TestPDFTextExtractor_SinglePageNoFormFeed(t *testing.T) {
	runner := &mockRunner{outputs: map[string][]byte{
		"pdftotext": []byte("only page"),
	}}
	e := NewPDFTextExtractor(runner, "")

	pages, err := e.ExtractPages(context.Background(), "doc.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "only page", pages[0].Text)
}

func TestPDFTextExtractor_PropagatesToolFailure(t *testing.T) {
	runner := &mockRunner{errs: map[string]error{
		"pdftotext": fmt.Errorf("pdftotext failed: corrupt file"),
	}}
	e := NewPDFTextExtractor(runner, "")

	_, err := e.ExtractPages(context.Background(), "broken.pdf")
	assert.Error(t, err)
}

func TestOCRExtractor_RendersThenRecognizes(t *testing.T) {
	// Given: a runner that fakes pdftoppm by writing page images
	runner := &mockRunner{outputs: map[string][]byte{
		"tesseract": []byte("recognized text"),
	}}
	runner.onRun = func(name string, args []string) {
		if name != "pdftoppm" {
			return
		}
		prefix := args[len(args)-1]
		for i := 1; i <= 2; i++ {
			err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644)
			require.NoError(t, err)
		}
	}
	e := NewOCRExtractor(runner, "", "", 0)

	pages, err := e.ExtractPages(context.Background(), "scan.pdf")
	require.NoError(t, err)

	// Then: one OCR pass per rendered page
	require.Len(t, pages, 2)
	assert.Equal(t, "recognized text", pages[0].Text)
	assert.Equal(t, []string{"pdftoppm", "tesseract", "tesseract"}, runner.calls)
}

// scriptedExtractor returns fixed pages or an error.
type scriptedExtractor struct {
	pages []document.Page
	err   error
	calls int
}

func (s *scriptedExtractor) ExtractPages(ctx context.Context, path string) ([]document.Page, error) {
	s.calls++
	return s.pages, s.err
}

func TestLoader_UsesTextLayerWhenPresent(t *testing.T) {
	text := &scriptedExtractor{pages: []document.Page{{Number: 0, Text: "real text"}}}
	ocr := &scriptedExtractor{pages: []document.Page{{Number: 0, Text: "ocr text"}}}
	l := NewLoader(text, ocr)

	pages, err := l.Load(context.Background(), "doc.pdf")
	require.NoError(t, err)

	assert.Equal(t, "real text", pages[0].Text)
	assert.Zero(t, ocr.calls)
}

func TestLoader_FallsBackToOCRWhenNoText(t *testing.T) {
	// Given: a text layer of pure whitespace across all pages
	text := &scriptedExtractor{pages: []document.Page{
		{Number: 0, Text: "   \n"},
		{Number: 1, Text: "\t"},
	}}
	ocr := &scriptedExtractor{pages: []document.Page{{Number: 0, Text: "scanned content"}}}
	l := NewLoader(text, ocr)

	pages, err := l.Load(context.Background(), "scan.pdf")
	require.NoError(t, err)

	assert.Equal(t, "scanned content", pages[0].Text)
	assert.Equal(t, 1, ocr.calls)
}

func TestLoader_TextErrorNotMaskedByOCR(t *testing.T) {
	text := &scriptedExtractor{err: fmt.Errorf("corrupt pdf")}
	ocr := &scriptedExtractor{}
	l := NewLoader(text, ocr)

	_, err := l.Load(context.Background(), "broken.pdf")
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "corrupt pdf"))
	assert.Zero(t, ocr.calls)
}
