package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/mcpserver"
	"github.com/54b3r/adbpg-go/internal/tracing"
)

// NewMCPCmd constructs the `adbpg mcp` command, which serves the tool set
// over the Model Context Protocol on stdin/stdout.
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdio",
		Long: `Serve every adbpg tool over the Model Context Protocol on stdin/stdout.

Logs go to stderr (and LOG_FILE when set) so stdout stays a clean JSON-RPC
channel.

Example MCP host entry:
  {"command": "adbpg", "args": ["mcp"]}`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			flush := tracing.Register(log)
			defer flush()

			client, err := newClient(log, nil)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			ledger, closeLedger := openLedger(log)
			defer closeLedger()

			registry, err := buildRegistry(client, ingestConfig(ledger, nil), log)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			srv, err := mcpserver.New(registry, log)
			if err != nil {
				return err
			}
			return srv.Serve(ctx, os.Stdin, os.Stdout)
		},
	}
}
