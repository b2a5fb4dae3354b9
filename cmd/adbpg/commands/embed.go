package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/embedder"
	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/tracing"
)

// NewEmbedCmd constructs the `adbpg embed` command.
func NewEmbedCmd() *cobra.Command {
	var modelName string
	var dimension int

	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: "Embed texts with the AnalyticDB embedding model",
		Long: `Embed one or more texts and print the vectors and token usage as JSON.

Examples:
  adbpg embed "hello world"
  adbpg embed --model text-embedding-v3 --dimension 512 "first" "second"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush := tracing.Register(log)
			defer flush()

			client, err := newClient(log, nil)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}

			cfg := embedder.ConfigFromEnv()
			if modelName != "" {
				cfg.Model = modelName
			}
			if dimension > 0 {
				cfg.Dimension = dimension
			}
			embedder.WarnIfChatModel(cfg, log)

			e, err := embedder.New(client, cfg, log)
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}
			res, err := e.Embed(ctx, args)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{
				"model":      cfg.Model,
				"embeddings": res.Embeddings,
				"usage":      res.Usage,
			})
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "Embedding model (env ADBPG_EMBEDDING_MODEL)")
	cmd.Flags().IntVar(&dimension, "dimension", 0, "Vector dimension (env ADBPG_EMBEDDING_DIMENSION)")

	return cmd
}
