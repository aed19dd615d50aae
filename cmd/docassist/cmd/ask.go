package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/docassist/docassist/internal/answer"
	"github.com/docassist/docassist/internal/embed"
	"github.com/docassist/docassist/internal/retrieval"
	"github.com/docassist/docassist/internal/store"
)

func newAskCmd() *cobra.Command {
	var (
		docFilter   []string
		topK        int
		threshold   float64
		showSources bool
	)

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a question about the indexed documents",
		Long: `Retrieves the chunks nearest to the question and answers from
them. With --doc the search is restricted to the named document(s).
When nothing relevant is found, DocAssist refuses instead of guessing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.Join(args, " ")
			ctx := cmd.Context()

			idx, err := store.Open(ctx, cfg.Paths.IndexDir)
			if err != nil {
				return err
			}
			defer func() { _ = idx.Close() }()

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

			if err := idx.CheckModel(ctx, embedder.ModelName(), embedder.Dimensions()); err != nil {
				return err
			}
			if err := checkFilter(cmd, idx, docFilter); err != nil {
				return err
			}

			queryVec, err := embedder.Embed(ctx, question)
			if err != nil {
				return fmt.Errorf("failed to embed question: %w", err)
			}

			k := cfg.Retrieval.TopK
			if cmd.Flags().Changed("top-k") {
				k = topK
			}
			raw, err := idx.Search(ctx, queryVec, k, docFilter)
			if err != nil {
				return err
			}

			gateThreshold := cfg.Retrieval.DistanceThreshold
			if cmd.Flags().Changed("threshold") {
				gateThreshold = threshold
			}
			decision := retrieval.NewGate(gateThreshold).Decide(question, raw)

			gen := answer.NewOllamaGenerator(cfg.LLM.Host, cfg.LLM.Model, cfg.LLM.Timeout)
			ans, err := answer.NewAssembler(gen).Answer(ctx, question, decision)
			if err != nil {
				return err
			}

			fmt.Println(ans.Text)
			if ans.Outcome == retrieval.OutcomeFallback {
				fmt.Println("\n(note: no chunk passed the relevance gate; answered from the nearest match)")
			}
			if showSources && len(ans.Citations) > 0 {
				fmt.Println("\nSources:")
				for _, c := range ans.Citations {
					fmt.Printf("  %s | Page %d (distance %.3f)\n", c.DocTitle, c.Page, c.Distance)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&docFilter, "doc", nil, "Restrict search to the named document(s)")
	cmd.Flags().IntVar(&topK, "top-k", 5, "Number of chunks to retrieve")
	cmd.Flags().Float64Var(&threshold, "threshold", retrieval.DefaultDistanceThreshold, "Maximum cosine distance for relevance")
	cmd.Flags().BoolVar(&showSources, "sources", false, "Print the cited chunks")

	return cmd
}

// checkFilter warns about filter titles that match no indexed document. The
// query still runs; an unknown title simply contributes no candidates.
func checkFilter(cmd *cobra.Command, idx *store.Index, filter []string) error {
	if len(filter) == 0 {
		return nil
	}

	docs, err := idx.ListDocuments(cmd.Context())
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(docs))
	for _, d := range docs {
		known[d.Title] = true
	}
	for _, title := range filter {
		if !known[title] {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: no indexed document named %q\n", title)
		}
	}
	return nil
}
