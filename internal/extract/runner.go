// Package extract pulls page text out of PDF files. The primary path shells
// out to pdftotext; scanned documents that yield no text fall back to OCR
// via pdftoppm and tesseract.
package extract

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandRunner abstracts external tool invocation so extractors can be
// tested without poppler or tesseract installed.
type CommandRunner interface {
	// Run executes the named tool and returns its combined stdout.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

var _ CommandRunner = ExecRunner{}

// Run executes the command and returns stdout. Stderr is folded into the
// error on failure.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, exitErr.Stderr)
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}
