package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/files"
	"github.com/54b3r/adbpg-go/internal/store"
)

// Uploader submits documents to a knowledge base and waits on their jobs.
type Uploader struct {
	client   Client
	resolver *files.Resolver
	cfg      *Config
	log      *slog.Logger
}

// NewUploader constructs an Uploader. resolver may be nil to use one built
// from the environment.
func NewUploader(client Client, resolver *files.Resolver, cfg *Config, log *slog.Logger) (*Uploader, error) {
	if client == nil {
		return nil, fmt.Errorf("ingestion: client must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if resolver == nil {
		resolver = files.NewResolver(log)
	}
	return &Uploader{client: client, resolver: resolver, cfg: cfg.withDefaults(), log: log}, nil
}

// Upload resolves locator and submits it through the local-file API when
// the bytes are reachable, or the URL API otherwise. A missing FileName is
// inferred from the locator. The returned response carries JobId.
func (u *Uploader) Upload(ctx context.Context, locator string, opts adbpg.UploadOptions) (*adbpg.Response, error) {
	if strings.TrimSpace(locator) == "" {
		return nil, fmt.Errorf("ingestion: %w: file locator is required", adbpg.ErrInvalidArgument)
	}
	if opts.FileName == "" {
		opts.FileName = InferFile(locator).FileName
	}

	resp, err := files.Upload(ctx, u.resolver, locator,
		func(path string) (*adbpg.Response, error) {
			return u.client.UploadDocumentAsyncFile(ctx, opts, path)
		},
		func(url string) (*adbpg.Response, error) {
			o := opts
			o.FileURL = url
			return u.client.UploadDocumentAsync(ctx, o)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("ingestion: upload %s: %w", opts.FileName, err)
	}

	if jobID, err := adbpg.JobID(resp); err == nil {
		u.log.Info("ingestion: upload job started",
			slog.String("job_id", jobID),
			slog.String("collection", opts.Collection),
			slog.String("file_name", opts.FileName),
		)
		u.cfg.record(ctx, store.Job{
			ID:         jobID,
			Collection: opts.Collection,
			FileName:   opts.FileName,
			Source:     locator,
			DryRun:     opts.DryRun != nil && *opts.DryRun,
		}, u.log)
	}
	return resp, nil
}

// Status reads a job once.
func (u *Uploader) Status(ctx context.Context, collection, jobID string) (*adbpg.Response, error) {
	resp, err := u.client.GetUploadDocumentJob(ctx, collection, jobID)
	if err != nil {
		return nil, err
	}
	if u.cfg.Ledger != nil {
		u.cfg.Ledger.Observe(ctx, jobID, resp.Job())
	}
	return resp, nil
}

// Wait polls a job until it completes or reports an error. Unlike Parse, a
// job that completed with an error is returned as a response, not an error.
func (u *Uploader) Wait(ctx context.Context, collection, jobID string) (*adbpg.Response, error) {
	resp, err := u.cfg.poller(u.client, true, u.log).Await(ctx, collection, jobID)
	var failed *adbpg.JobFailedError
	if errors.As(err, &failed) && failed.Response != nil {
		return failed.Response, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}
