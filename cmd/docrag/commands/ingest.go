package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/ingestion"
	"github.com/54b3r/docrag-go/internal/logging"
)

// maxStdinBytes caps text read from standard input.
const maxStdinBytes = 16 << 20

// NewIngestCmd constructs the `docrag ingest` command, which stores documents
// and indexes their chunks.
func NewIngestCmd() *cobra.Command {
	var files []string
	var urls []string
	var text string
	var serverURL string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Ingest documents into the store and vector index",
		Long: `Chunk, embed and store one or more documents. Each file, URL, --text
value or stdin stream becomes its own document; the document ID is printed
for each.

Ingestion is atomic per document: if any chunk fails to embed or store,
nothing from that document is kept.

Files ending in .pdf have their text extracted; other files must be UTF-8.

With the memory index, a running server owns the live index. The command
forwards to the server given by --server or DOCRAG_SERVER_URL, or to one it
finds at DOCRAG_HOST:DOCRAG_PORT, and only writes the store directly when no
server is running.

Examples:
  docrag ingest --file handbook.md --file policy.pdf
  docrag ingest --url https://example.com/faq.txt
  docrag ingest --text "The office opens at 9am."
  cat notes.txt | docrag ingest`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)
			out := cmd.OutOrStdout()

			sources := make([]ingestion.Source, 0, len(files)+len(urls))
			for _, f := range files {
				sources = append(sources, ingestion.Source{Path: f})
			}
			for _, u := range urls {
				sources = append(sources, ingestion.Source{URL: u})
			}

			texts := make([]string, 0, 1)
			if cmd.Flags().Changed("text") {
				texts = append(texts, text)
			}
			if len(sources) == 0 && len(texts) == 0 {
				stdinText, err := readStdin(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				texts = append(texts, stdinText)
			}

			rc, err := resolveRemote(ctx, log, serverURL)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			if rc != nil {
				return ingestRemote(ctx, rc, texts, sources, out)
			}

			c, err := buildComponents(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer c.Close()

			for _, t := range texts {
				res, err := c.pipeline.Ingest(ctx, t)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}
				fmt.Fprintf(out, "%s\t%d chunks\n", res.DocumentID, res.Chunks)
			}

			results, err := c.pipeline.IngestSources(ctx, sources, func(msg string) {
				log.Info(msg)
			})
			for i, res := range results {
				fmt.Fprintf(out, "%s\t%d chunks\t%s\n", res.DocumentID, res.Chunks, sources[i])
			}
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			log.Info("ingestion complete", slog.Int("documents", len(results)+len(texts)))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "File to ingest (repeatable; .pdf supported)")
	cmd.Flags().StringArrayVarP(&urls, "url", "u", nil, "URL whose body is ingested as text (repeatable)")
	cmd.Flags().StringVarP(&text, "text", "t", "", "Literal text to ingest as one document")
	cmd.Flags().StringVar(&serverURL, "server", "", "docrag server URL to forward to (memory index only)")

	return cmd
}

// ingestRemote uploads texts and then each loaded source to a running server,
// printing the same lines as a local ingest.
func ingestRemote(ctx context.Context, rc *remoteClient, texts []string, sources []ingestion.Source, out io.Writer) error {
	for _, t := range texts {
		res, err := rc.upload(ctx, t)
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}
		fmt.Fprintf(out, "%s\t%d chunks\n", res.DocumentID, res.Chunks)
	}

	loader := ingestion.NewLoader(nil)
	for _, src := range sources {
		text, err := loader.Load(ctx, src)
		if err != nil {
			return fmt.Errorf("ingest: load %s: %w", src, err)
		}
		res, err := rc.upload(ctx, text)
		if err != nil {
			return fmt.Errorf("ingest: %s: %w", src, err)
		}
		fmt.Fprintf(out, "%s\t%d chunks\t%s\n", res.DocumentID, res.Chunks, src)
	}
	return nil
}

// readStdin reads all of r when it is not an interactive terminal.
func readStdin(r io.Reader) (string, error) {
	if f, ok := r.(*os.File); ok {
		if fi, err := f.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
			return "", fmt.Errorf("nothing to ingest: pass --file, --url, --text or pipe text on stdin")
		}
	}
	b, err := io.ReadAll(io.LimitReader(r, maxStdinBytes+1))
	if err != nil {
		return "", fmt.Errorf("read stdin: %w", err)
	}
	if len(b) > maxStdinBytes {
		return "", fmt.Errorf("stdin exceeds %d bytes", maxStdinBytes)
	}
	return string(b), nil
}
