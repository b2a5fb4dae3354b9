package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/files"
	"github.com/54b3r/adbpg-go/internal/ingestion"
	"github.com/54b3r/adbpg-go/internal/jobs"
	"github.com/54b3r/adbpg-go/internal/store"
	"github.com/54b3r/adbpg-go/internal/tools"
)

// newClient builds the facade client from the ANALYTICDB_* variables.
// reg may be nil to skip metrics.
func newClient(log *slog.Logger, reg prometheus.Registerer) (*adbpg.Client, error) {
	creds, err := adbpg.CredentialsFromEnv()
	if err != nil {
		return nil, err
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	opts := []adbpg.Option{adbpg.WithLogger(log)}
	if reg != nil {
		opts = append(opts, adbpg.WithMetrics(adbpg.NewMetrics(reg)))
	}
	client, err := adbpg.New(creds, opts...)
	if err != nil {
		return nil, fmt.Errorf("client: %w", err)
	}
	log.Debug("client initialised", slog.Any("credentials", creds))
	return client, nil
}

// openLedger opens the job ledger named by ADBPG_JOBS_DB. A ledger that
// cannot be opened is logged and skipped. The returned close is always safe
// to call.
func openLedger(log *slog.Logger) (*store.SQLiteStore, func()) {
	ledger, err := store.OpenFromEnv()
	if err != nil {
		log.Warn("jobs: failed to open ledger, disabling", slog.Any("error", err))
		return nil, func() {}
	}
	if ledger == nil {
		log.Info("jobs: ledger disabled via ADBPG_JOBS_DB=disabled")
		return nil, func() {}
	}
	return ledger, func() { _ = ledger.Close() }
}

// ingestConfig builds the job polling configuration from the environment.
// ledger may be nil.
func ingestConfig(ledger *store.SQLiteStore, reg prometheus.Registerer) *ingestion.Config {
	cfg := &ingestion.Config{
		PollInterval: getEnvDuration("ADBPG_JOB_POLL_INTERVAL", jobs.DefaultInterval),
		PollTimeout:  getEnvDuration("ADBPG_JOB_TIMEOUT", jobs.DefaultTimeout),
	}
	// Assign only a non-nil store: a typed nil would pass the interface check.
	if ledger != nil {
		cfg.Ledger = ledger
	}
	if reg != nil {
		cfg.Metrics = jobs.NewMetrics(reg)
	}
	return cfg
}

// buildRegistry constructs every tool over client.
func buildRegistry(client *adbpg.Client, ingest *ingestion.Config, log *slog.Logger) (*tools.Registry, error) {
	ts, err := tools.All(tools.Deps{
		Client:   client,
		Resolver: files.NewResolver(log),
		Ingest:   ingest,
		Log:      log,
	})
	if err != nil {
		return nil, err
	}
	return tools.NewRegistry(ts)
}

// getEnvOrDefault returns the value of the named environment variable, or
// fallback if the variable is unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the integer value of the named environment variable, or
// fallback if unset or unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// getEnvFloat returns the float value of the named environment variable, or
// fallback if unset or unparseable.
func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration reads a Go duration ("3s") or a number of seconds.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(n * float64(time.Second))
	}
	return fallback
}
