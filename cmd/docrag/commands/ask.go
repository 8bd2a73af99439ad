package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/rag"
)

// NewAskCmd constructs the `docrag ask` command, which answers a single
// question from the indexed documents and prints the answer and its context.
func NewAskCmd() *cobra.Command {
	var k int
	var sourcesOnly bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question from the ingested documents",
		Long: `Embed the question, retrieve the closest chunks, and ask the model to
answer strictly from them. The chunks used are printed after the answer.

With --sources-only the model is not called; only the retrieved chunks are
printed.

Examples:
  docrag ask "when does the office open?"
  docrag ask --k 5 "what is the refund policy?"
  docrag ask --sources-only "refund policy"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)
			out := cmd.OutOrStdout()
			question := strings.Join(args, " ")

			c, err := buildComponents(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer c.Close()

			if sourcesOnly {
				retriever, err := buildRetriever(c)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				hits, err := retriever.Retrieve(ctx, question, k)
				if err != nil {
					return fmt.Errorf("ask: %w", err)
				}
				if len(hits) == 0 {
					return fmt.Errorf("ask: %w", rag.ErrNoRelevantContent)
				}
				for i, h := range hits {
					fmt.Fprintf(out, "[%d] distance=%.4f document=%s\n%s\n\n", i+1, h.Distance, h.DocumentID, h.Text)
				}
				return nil
			}

			answerer, _, _, err := buildAnswerer(ctx, c, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			ans, err := answerer.Answer(ctx, question, k)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Fprintln(out, ans.Text)
			fmt.Fprintln(out, "\nContext:")
			for i, chunk := range ans.Context {
				fmt.Fprintf(out, "[%d] %s\n", i+1, chunk)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "k", "k", 0, "Number of chunks to retrieve (default: RAG_TOP_K or 3)")
	cmd.Flags().BoolVar(&sourcesOnly, "sources-only", false, "Print retrieved chunks without calling the model")

	return cmd
}
