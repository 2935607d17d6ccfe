package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notely-ai/contextd/internal/composer"
	"github.com/notely-ai/contextd/internal/config"
	"github.com/notely-ai/contextd/internal/logging"
)

// NewQueryCmd constructs the `contextd query` command, which assembles and
// prints the retrieval context for a query string.
func NewQueryCmd() *cobra.Command {
	var workspaceID int64
	var conversationID int64

	cmd := &cobra.Command{
		Use:   "query [flags] <question>",
		Short: "Assemble retrieval context for a query",
		Long: `Embed the query, search the vector index, and print the assembled context
string exactly as it would be injected into a chat prompt.

With --conversation the search is scoped to the files attached to that
conversation; otherwise the whole workspace is searched. An empty result
prints nothing and exits zero.

Examples:
  contextd query --workspace 1 "what is the refund policy"
  contextd query --workspace 1 --conversation 7 "summarise the contract"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if workspaceID <= 0 {
				return fmt.Errorf("query: --workspace must be positive")
			}
			question := strings.Join(args, " ")

			emb, releaseEmb, err := buildEmbedder(log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer releaseEmb()

			idx, err := buildIndex(ctx, log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer func() { _ = idx.Close() }()

			cat, closeCat, err := openCatalog(log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}
			defer closeCat()

			comp, err := composer.New(idx, emb, cat, &composer.Config{
				TopK:     config.EnvInt("CONTEXT_TOP_K", 0),
				MaxFiles: config.EnvInt("CONTEXT_MAX_FILES", 0),
				MaxChars: config.EnvInt("CONTEXT_MAX_CHARS", 0),
			}, log)
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			var out string
			if conversationID > 0 {
				out, err = comp.ForConversation(ctx, workspaceID, conversationID, question)
			} else {
				out, err = comp.ForWorkspace(ctx, workspaceID, question)
			}
			if err != nil {
				return fmt.Errorf("query: %w", err)
			}

			if out != "" {
				fmt.Println(out)
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&workspaceID, "workspace", 0, "Workspace id to search")
	cmd.Flags().Int64Var(&conversationID, "conversation", 0, "Conversation id to scope the search to (optional)")

	return cmd
}
