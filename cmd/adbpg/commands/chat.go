package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/agent"
	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/provider"
	"github.com/54b3r/adbpg-go/internal/rag"
	"github.com/54b3r/adbpg-go/internal/tracing"
)

// NewChatCmd constructs the `adbpg chat` command. With a question argument it
// answers once; without one it starts an interactive session that keeps the
// conversation history.
func NewChatCmd() *cobra.Command {
	var (
		kb        string
		system    string
		topK      int
		threshold float64
		maxTokens int
		temp      float64
		presence  float64
		seed      int
	)

	cmd := &cobra.Command{
		Use:   "chat [question]",
		Short: "Chat with the AnalyticDB model, optionally grounded on a knowledge base",
		Long: `Chat with the AnalyticDB hosted model.

With --kb, every question is first answered against the knowledge base and
the top excerpts are added to the prompt. Without a question argument an
interactive session starts; type /reset to clear history and /exit to quit.

Examples:
  adbpg chat "what does the refund policy say?" --kb docs
  adbpg chat --kb docs --top-k 8
  adbpg chat --system "Answer in one sentence." "what is a vector database?"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush := tracing.Register(log)
			defer flush()

			chatModel, client, err := provider.NewFromEnv(log)
			if err != nil {
				return fmt.Errorf("chat: failed to initialise model provider: %w", err)
			}

			cfg := &agent.Config{
				ChatModel:      chatModel,
				KnowledgeBase:  kb,
				TopK:           topK,
				ScoreThreshold: threshold,
				System:         system,
			}
			if kb != "" {
				r, err := rag.NewKnowledgeRetriever(client, kb, rag.DefaultSetting, log)
				if err != nil {
					return fmt.Errorf("chat: %w", err)
				}
				cfg.Retriever = r
			}
			if cmd.Flags().Changed("max-tokens") {
				cfg.Options = append(cfg.Options, model.WithMaxTokens(maxTokens))
			}
			if cmd.Flags().Changed("temperature") {
				cfg.Options = append(cfg.Options, model.WithTemperature(float32(temp)))
			}
			if cmd.Flags().Changed("presence-penalty") {
				cfg.Options = append(cfg.Options, provider.WithPresencePenalty(presence))
			}
			if cmd.Flags().Changed("seed") {
				cfg.Options = append(cfg.Options, provider.WithSeed(seed))
			}

			ka, err := agent.New(cfg)
			if err != nil {
				return fmt.Errorf("chat: failed to initialise agent: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				_, err = ka.Query(ctx, args[0], out)
				fmt.Fprintln(out)
				return err
			}
			return repl(cmd.InOrStdin(), out, func(q string) error {
				_, err := ka.Query(ctx, q, out)
				return err
			}, ka.Reset)
		},
	}

	cmd.Flags().StringVar(&kb, "kb", "", "Knowledge base (document collection) to ground answers on")
	cmd.Flags().StringVar(&system, "system", "", "System prompt override")
	cmd.Flags().IntVar(&topK, "top-k", 5, "Excerpts retrieved per question")
	cmd.Flags().Float64Var(&threshold, "score-threshold", 0, "Minimum excerpt score")
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens in each answer")
	cmd.Flags().Float64Var(&temp, "temperature", 0, "Sampling temperature")
	cmd.Flags().Float64Var(&presence, "presence-penalty", 0, "Presence penalty")
	cmd.Flags().IntVar(&seed, "seed", 0, "Sampling seed")

	return cmd
}

// repl reads one question per line until EOF or /exit. A failed question is
// reported and the session continues.
func repl(in io.Reader, out io.Writer, ask func(string) error, reset func()) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		case "/reset":
			reset()
			fmt.Fprintln(out, "history cleared")
			continue
		}
		if err := ask(line); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		fmt.Fprintln(out)
	}
}
