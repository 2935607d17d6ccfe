// Package commands defines all Cobra CLI commands for the contextd binary.
package commands

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/notely-ai/contextd/internal/audit"
	"github.com/notely-ai/contextd/internal/config"
	"github.com/notely-ai/contextd/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "contextd",
		Short: "contextd — document ingestion and retrieval context service",
		Long: `contextd keeps a vector index in sync with workspace files and assembles
retrieval context for chat prompts.

The consume command runs the long-lived worker: it polls the event queue for
file create/update/delete events, chunks and embeds file content, and upserts
the results into Qdrant. The ingest and query commands exercise the same
pipeline one-shot from the terminal.

Configuration comes from env vars or a YAML config file (~/.contextd/config.yaml).
See 'contextd --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Local-dev convenience: pick up a .env file if present.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.contextd/config.yaml)")

	root.AddCommand(
		NewConsumeCmd(),
		NewIngestCmd(),
		NewQueryCmd(),
		NewVersionCmd(),
	)

	return root
}
