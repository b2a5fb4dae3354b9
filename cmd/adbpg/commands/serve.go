package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/rag"
	"github.com/54b3r/adbpg-go/internal/server"
	"github.com/54b3r/adbpg-go/internal/tracing"
)

// NewServeCmd constructs the `adbpg serve` command, which starts the HTTP
// endpoint for Dify's external knowledge API and the tool API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var initDB bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the external knowledge HTTP endpoint",
		Long: `Start the adbpg HTTP server.

Routes:
  POST /retrieval          Dify external knowledge retrieval
  POST /api/tools/{name}   invoke a tool with a JSON body
  GET  /api/tools          list tools
  GET  /api/health         liveness
  GET  /api/ready          readiness (DescribeNamespace)
  GET  /metrics            Prometheus metrics

Set ADBPG_API_KEY to require "Authorization: Bearer <key>" on /retrieval and
/api/tools. Use the same key as the external knowledge API key in Dify.

Examples:
  adbpg serve
  adbpg serve --port 9090 --init
  ADBPG_API_KEY=secret adbpg serve --host 0.0.0.0`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Flag defaults come from config, which is loaded after flag parsing.
			if !cmd.Flags().Changed("host") {
				host = getEnvOrDefault("ADBPG_SERVER_HOST", "127.0.0.1")
			}
			if !cmd.Flags().Changed("port") {
				port = getEnvInt("ADBPG_SERVER_PORT", 8080)
			}

			flush := tracing.Register(log)
			defer flush()

			reg := prometheus.DefaultRegisterer
			client, err := newClient(log, reg)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			if initDB {
				if err := client.Init(ctx); err != nil {
					return fmt.Errorf("serve: init vector database: %w", err)
				}
				log.Info("vector database and namespace initialised")
			}

			ledger, closeLedger := openLedger(log)
			defer closeLedger()

			registry, err := buildRegistry(client, ingestConfig(ledger, reg), log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			retriever, err := rag.NewKnowledgeRetriever(client, "", rag.DefaultSetting, log)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{server.NewNamespacePinger(client)}
			if ledger != nil {
				pingers = append(pingers, server.NewLedgerPinger(ledger))
			}

			srv, err := server.New(retriever, registry, &server.Config{
				Host:      host,
				Port:      port,
				Logger:    log,
				Pingers:   pingers,
				APIKey:    os.Getenv("ADBPG_API_KEY"),
				RateLimit: getEnvFloat("ADBPG_RATE_LIMIT_RPS", 0),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			log.Info("serve starting", slog.Int("tools", len(registry.Names())))
			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to (env ADBPG_SERVER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on (env ADBPG_SERVER_PORT)")
	cmd.Flags().BoolVar(&initDB, "init", false, "Initialise the vector database and namespace before serving")

	return cmd
}
