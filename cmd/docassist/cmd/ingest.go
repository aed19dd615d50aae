package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/docassist/docassist/internal/chunker"
	"github.com/docassist/docassist/internal/embed"
	"github.com/docassist/docassist/internal/extract"
	"github.com/docassist/docassist/internal/indexer"
	"github.com/docassist/docassist/internal/store"
)

func newIngestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest",
		Short: "Index new and changed PDF documents",
		Long: `Scans the data directory for PDF files and updates the index.
Unchanged documents are skipped; changed documents are reindexed from
scratch. Safe to run repeatedly.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), false)
		},
	}
}

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Continuously reindex as documents change",
		Long: `Runs an initial ingest, then watches the data directory and
reindexes whenever PDF files are added, changed or removed. Stops on
interrupt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), true)
		},
	}
}

func runIngest(ctx context.Context, watch bool) error {
	embedder, err := embed.New(ctx, embed.FactoryConfig{
		Provider:   embed.Provider(cfg.Embeddings.Provider),
		Model:      cfg.Embeddings.Model,
		OllamaHost: cfg.Embeddings.OllamaHost,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
	if err != nil {
		return err
	}
	defer func() { _ = embedder.Close() }()

	idx, err := store.OpenWritable(ctx, cfg.Paths.IndexDir, embedder.Dimensions())
	if err != nil {
		return err
	}
	defer func() { _ = idx.Close() }()

	if err := idx.CheckModel(ctx, embedder.ModelName(), embedder.Dimensions()); err != nil {
		return err
	}

	loader := extract.NewDefaultLoader(extract.Config{
		PDFToText: cfg.Extraction.PDFToText,
		PDFToPPM:  cfg.Extraction.PDFToPPM,
		Tesseract: cfg.Extraction.Tesseract,
		OCRDPI:    cfg.Extraction.OCRDPI,
	})

	x := indexer.New(cfg.Paths.DataDir, loader,
		chunker.Config{Size: cfg.Chunking.Size, Overlap: cfg.Chunking.Overlap},
		embedder, idx)

	start := time.Now()
	report, err := x.Reindex(ctx)
	if err != nil {
		return err
	}
	printReport(report, time.Since(start))

	if watch {
		// Interrupt is the normal way to stop watch mode
		if err := x.Watch(ctx, cfg.Watch.Debounce); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}

func printReport(r indexer.Report, elapsed time.Duration) {
	fmt.Printf("Indexed %d new, %d changed, %d unchanged document(s) in %s\n",
		r.NewDocs, r.ChangedDocs, r.UnchangedDocs, elapsed.Round(time.Millisecond))
	fmt.Printf("Chunks: %d added, %d evicted\n", r.ChunksAdded, r.ChunksEvicted)
	if r.FailedDocs > 0 {
		fmt.Printf("Warning: %d document(s) failed to index, see logs\n", r.FailedDocs)
	}
}
