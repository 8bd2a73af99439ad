// Command docrag ingests documents into a vector index and answers questions
// strictly from the retrieved content. It runs as a CLI (via Cobra) or as an
// HTTP server.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/docrag-go/cmd/docrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
