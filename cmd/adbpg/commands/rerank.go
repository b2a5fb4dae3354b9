package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/provider"
	"github.com/54b3r/adbpg-go/internal/tracing"
)

// NewRerankCmd constructs the `adbpg rerank` command.
func NewRerankCmd() *cobra.Command {
	var (
		modelName string
		topN      int
		threshold float64
	)

	cmd := &cobra.Command{
		Use:   "rerank <query> <document>...",
		Short: "Score documents against a query with the rerank model",
		Long: `Rerank documents against a query. Scores are normalized to (0, 1).

Examples:
  adbpg rerank "capital of the USA" "Carson City is in Nevada." "Washington, D.C. is the capital."
  adbpg rerank --top-n 1 --score-threshold 0.5 "query" "doc a" "doc b"`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush := tracing.Register(log)
			defer flush()

			client, err := newClient(log, nil)
			if err != nil {
				return fmt.Errorf("rerank: %w", err)
			}
			if modelName == "" {
				modelName = os.Getenv("ADBPG_RERANK_MODEL")
			}
			r, err := provider.NewReranker(client, modelName, log)
			if err != nil {
				return fmt.Errorf("rerank: %w", err)
			}

			var opts provider.RerankOptions
			if cmd.Flags().Changed("top-n") {
				opts.TopN = &topN
			}
			if cmd.Flags().Changed("score-threshold") {
				opts.ScoreThreshold = &threshold
			}

			results, err := r.Rerank(ctx, args[0], args[1:], opts)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, res := range results {
				fmt.Fprintf(out, "%d\t%.4f\t%s\n", res.Index, res.Score, res.Document)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&modelName, "model", "", "Rerank model (env ADBPG_RERANK_MODEL)")
	cmd.Flags().IntVar(&topN, "top-n", 0, "Keep at most this many results")
	cmd.Flags().Float64Var(&threshold, "score-threshold", 0, "Drop results scoring below this")

	return cmd
}
