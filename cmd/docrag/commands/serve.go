package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/logging"
	"github.com/54b3r/docrag-go/internal/server"
	"github.com/54b3r/docrag-go/internal/tracing"
)

// NewServeCmd constructs the `docrag serve` command, which starts the HTTP
// server exposing upload, query and delete.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the docrag HTTP server",
		Long: `Start the docrag HTTP server.

Routes:
  POST   /upload            {"text": "..."} -> {"document_id": "...", "chunks": n}
  POST   /query             {"text": "...", "k": 3} -> {"answer": "...", "context": [...]}
  DELETE /documents/{id}
  GET    /api/health, /api/ready, /metrics

With VECTOR_INDEX=memory (the default without QDRANT_HOST) the index is
rebuilt from the document store at startup.

Examples:
  docrag serve
  docrag serve --port 9090
  VECTOR_INDEX=qdrant QDRANT_HOST=localhost docrag serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.FromContext(ctx)

			flush := tracing.Setup(tracing.ConfigFromEnv(), log)
			defer flush()

			c, err := buildComponents(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer func() {
				if err := c.Close(); err != nil {
					log.Warn("serve: close failed", slog.String("error", err.Error()))
				}
			}()

			answerer, gen, providerCfg, err := buildAnswerer(ctx, c, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("DOCRAG_HOST", host)
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("DOCRAG_PORT", port)
			}

			srv, err := server.New(c.pipeline, answerer, &server.Config{
				Host:     host,
				Port:     port,
				Logger:   log,
				Pingers:  buildPingers(c, gen, providerCfg),
				APIKey:   os.Getenv("DOCRAG_API_KEY"),
				IndexLen: c.index.Len,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
