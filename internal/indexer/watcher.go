package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Debouncer coalesces rapid filesystem events into a single trigger. A save
// from an editor or a bulk copy fires many events; only one reindex should
// run once the directory settles.
type Debouncer struct {
	window time.Duration
	output chan struct{}

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window: window,
		output: make(chan struct{}, 1),
	}
}

// Trigger restarts the quiet window. The output channel fires once the
// window elapses without further triggers.
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.stopped {
			return
		}
		select {
		case d.output <- struct{}{}:
		default:
		}
	})
}

// Output returns the channel that fires after each settled burst of events.
func (d *Debouncer) Output() <-chan struct{} {
	return d.output
}

// Stop stops the debouncer. Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}

// Watch reindexes whenever PDF files in the data directory change, until the
// context is cancelled. Each settled burst of filesystem events triggers one
// full incremental reindex.
func (x *Indexer) Watch(ctx context.Context, debounce time.Duration) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(x.dataDir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", x.dataDir, err)
	}

	debouncer := NewDebouncer(debounce)
	defer debouncer.Stop()

	slog.Info("watching for document changes",
		slog.String("dir", x.dataDir),
		slog.Duration("debounce", debounce))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.EqualFold(filepath.Ext(event.Name), ".pdf") {
				debouncer.Trigger()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", slog.String("error", err.Error()))

		case <-debouncer.Output():
			report, err := x.Reindex(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				slog.Error("reindex failed", slog.String("error", err.Error()))
				continue
			}
			slog.Info("reindex complete",
				slog.Int("new", report.NewDocs),
				slog.Int("changed", report.ChangedDocs),
				slog.Int("unchanged", report.UnchangedDocs),
				slog.Int("failed", report.FailedDocs),
				slog.Int("chunks_added", report.ChunksAdded))
		}
	}
}
