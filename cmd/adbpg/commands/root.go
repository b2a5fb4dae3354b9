// Package commands defines all Cobra CLI commands for the adbpg binary.
package commands

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/audit"
	"github.com/54b3r/adbpg-go/internal/config"
	"github.com/54b3r/adbpg-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "adbpg",
		Short: "AnalyticDB for PostgreSQL adapters for Dify",
		Long: `adbpg connects Dify to AnalyticDB for PostgreSQL.

It serves Dify's external knowledge API, exposes knowledge base management,
retrieval, document parsing, embedding, rerank and chat tools over MCP and
HTTP, and gives the same tools a command line.

Credentials come from the ANALYTICDB_* environment variables, a .env file,
or a YAML config file (~/.adbpg/config.yaml).
See 'adbpg --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// .env first, then YAML. Neither overrides the real environment.
			loaded, err := config.LoadDotEnv(log)
			if err != nil {
				return err
			}
			if len(loaded) > 0 {
				// LOG_* may have come from .env.
				log = logging.New()
				log.Debug("config: .env files loaded", slog.Any("files", loaded))
			}

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			audit.LogCommandStart(cmd.Context(), log, cmd.CommandPath(), loadedConfigPath, loaded)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.adbpg/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewMCPCmd(),
		NewToolCmd(),
		NewChatCmd(),
		NewEmbedCmd(),
		NewRerankCmd(),
		NewParseCmd(),
		NewJobsCmd(),
		NewValidateCmd(),
		NewVersionCmd(),
	)

	return root
}
