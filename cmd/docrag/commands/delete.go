package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/logging"
)

// NewDeleteCmd constructs the `docrag delete` command, which removes a
// document and all of its chunks from the store and the index.
func NewDeleteCmd() *cobra.Command {
	var serverURL string

	cmd := &cobra.Command{
		Use:   "delete <document-id>",
		Short: "Delete a document and its chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.FromContext(ctx)

			rc, err := resolveRemote(ctx, log, serverURL)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			if rc != nil {
				if err := rc.delete(ctx, args[0]); err != nil {
					return fmt.Errorf("delete: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			}

			c, err := buildComponents(ctx, log, false)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer c.Close()

			if err := c.pipeline.Delete(ctx, args[0]); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "docrag server URL to forward to (memory index only)")
	return cmd
}
