// Command contextd is the entry point for the document context service.
// It runs the queue consumer that keeps the vector index in sync with file
// events, and offers one-shot CLI commands for ingesting and querying.
package main

import (
	"fmt"
	"os"

	"github.com/notely-ai/contextd/cmd/contextd/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
