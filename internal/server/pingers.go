package server

import (
	"context"
	"fmt"

	"github.com/54b3r/adbpg-go/internal/adbpg"
)

// NamespaceDescriber is the part of *adbpg.Client the readiness probe calls.
type NamespaceDescriber interface {
	DescribeNamespace(ctx context.Context) (*adbpg.Response, error)
}

// NamespacePinger probes AnalyticDB by describing the configured namespace.
// The call is free, checks the credentials and proves the namespace exists.
type NamespacePinger struct {
	client NamespaceDescriber
}

// NewNamespacePinger constructs a NamespacePinger for client.
func NewNamespacePinger(client NamespaceDescriber) *NamespacePinger {
	return &NamespacePinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *NamespacePinger) Name() string { return "analyticdb" }

// Ping calls DescribeNamespace.
func (p *NamespacePinger) Ping(ctx context.Context) error {
	if _, err := p.client.DescribeNamespace(ctx); err != nil {
		return fmt.Errorf("describe namespace failed: %w", err)
	}
	return nil
}

// LedgerPinger probes the local job ledger database.
type LedgerPinger struct {
	db interface{ Ping(ctx context.Context) error }
}

// NewLedgerPinger constructs a LedgerPinger for db.
func NewLedgerPinger(db interface{ Ping(ctx context.Context) error }) *LedgerPinger {
	return &LedgerPinger{db: db}
}

// Name returns the dependency label used in readiness responses.
func (p *LedgerPinger) Name() string { return "job_ledger" }

// Ping checks the ledger database connection.
func (p *LedgerPinger) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("ledger ping failed: %w", err)
	}
	return nil
}
