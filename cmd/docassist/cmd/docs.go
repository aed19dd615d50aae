package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/docassist/docassist/internal/store"
)

func newDocsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "docs",
		Short: "List the indexed documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			idx, err := store.Open(ctx, cfg.Paths.IndexDir)
			if err != nil {
				return err
			}
			defer func() { _ = idx.Close() }()

			docs, err := idx.ListDocuments(ctx)
			if err != nil {
				return err
			}
			if len(docs) == 0 {
				fmt.Println("No documents indexed yet. Run 'docassist ingest' first.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DOCUMENT\tCHUNKS\tFINGERPRINT")
			for _, d := range docs {
				fp := d.Hash
				if len(fp) > 12 {
					fp = fp[:12]
				}
				fmt.Fprintf(w, "%s\t%d\t%s\n", d.Title, d.Chunks, fp)
			}
			return w.Flush()
		},
	}
}
