package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/embedder"
	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/provider"
)

// validateCheck is one credentials check run by `adbpg validate`.
type validateCheck struct {
	name string
	run  func(ctx context.Context) error
}

// NewValidateCmd constructs the `adbpg validate` command, which runs the same
// credential checks Dify runs when a provider or tool is configured.
func NewValidateCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check AnalyticDB credentials and model settings",
		Long: `Run the credential checks:

  tools       initialise the vector database and namespace
  provider    one chat call against the default model
  chat        one chat call against ADBPG_LLM_MODEL
  embedding   embed one word
  rerank      rerank two fixed documents

Examples:
  adbpg validate
  adbpg validate --check tools --check embedding`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			chatModel, client, err := provider.NewFromEnv(log)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			pcfg := provider.ConfigFromEnv()

			ecfg := embedder.ConfigFromEnv()
			embedder.WarnIfChatModel(ecfg, log)
			emb, err := embedder.New(client, ecfg, log)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}
			rr, err := provider.NewReranker(client, pcfg.RerankModel, log)
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			checks := []validateCheck{
				{"tools", func(ctx context.Context) error { return provider.ValidateToolCredentials(ctx, client, log) }},
				{"provider", func(ctx context.Context) error { return provider.ValidateProvider(ctx, client, pcfg, log) }},
				{"chat", func(ctx context.Context) error { return provider.ValidateChat(ctx, chatModel, log) }},
				{"embedding", func(ctx context.Context) error { return provider.ValidateEmbedding(ctx, emb, log) }},
				{"rerank", func(ctx context.Context) error { return provider.ValidateRerank(ctx, rr, log) }},
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, c := range selectChecks(checks, only) {
				if err := c.run(ctx); err != nil {
					failed++
					fmt.Fprintf(out, "FAIL  %-10s %v\n", c.name, err)
					continue
				}
				log.Debug("validate: check passed", slog.String("check", c.name))
				fmt.Fprintf(out, "ok    %s\n", c.name)
			}
			if failed > 0 {
				return fmt.Errorf("validate: %d check(s) failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&only, "check", nil, "Run only the named checks (repeatable)")

	return cmd
}

// selectChecks keeps the checks named in only, in their declared order. An
// empty only keeps all of them.
func selectChecks(checks []validateCheck, only []string) []validateCheck {
	if len(only) == 0 {
		return checks
	}
	want := make(map[string]bool, len(only))
	for _, n := range only {
		want[n] = true
	}
	var out []validateCheck
	for _, c := range checks {
		if want[c.name] {
			out = append(out, c)
		}
	}
	return out
}
