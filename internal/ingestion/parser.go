// Package ingestion implements the document flows that move files into the
// service: asynchronous uploads into a knowledge base and dry-run parsing,
// which runs the service's splitter without storing anything and returns the
// resulting chunks.
package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/files"
	"github.com/54b3r/adbpg-go/internal/jobs"
	"github.com/54b3r/adbpg-go/internal/store"
)

const (
	// DryRunCollection is the collection parse jobs are submitted to.
	DryRunCollection = "dify_doc_parser_dry_run"

	// ChunkDownloadTimeout bounds the chunk file download.
	ChunkDownloadTimeout = 120 * time.Second
)

// Client is the part of *adbpg.Client the ingestion flows use.
type Client interface {
	CreateDocumentCollection(ctx context.Context, opts adbpg.CreateCollectionOptions) (*adbpg.Response, error)
	UploadDocumentAsync(ctx context.Context, opts adbpg.UploadOptions) (*adbpg.Response, error)
	UploadDocumentAsyncFile(ctx context.Context, opts adbpg.UploadOptions, path string) (*adbpg.Response, error)
	GetUploadDocumentJob(ctx context.Context, collection, jobID string) (*adbpg.Response, error)
}

// Config holds the configuration shared by Parser and Uploader.
type Config struct {
	// PollInterval is the pause between job status reads.
	// Defaults to jobs.DefaultInterval if zero.
	PollInterval time.Duration

	// PollTimeout bounds a whole wait.
	// Defaults to jobs.DefaultTimeout if zero.
	PollTimeout time.Duration

	// HTTPClient downloads chunk files. Defaults to a client with
	// ChunkDownloadTimeout.
	HTTPClient *http.Client

	// Ledger records submitted jobs and their polled status. Optional.
	Ledger store.Ledger

	// Metrics counts terminal poll outcomes. Optional.
	Metrics *jobs.Metrics
}

func (c *Config) withDefaults() *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if out.PollInterval <= 0 {
		out.PollInterval = jobs.DefaultInterval
	}
	if out.PollTimeout <= 0 {
		out.PollTimeout = jobs.DefaultTimeout
	}
	if out.HTTPClient == nil {
		out.HTTPClient = &http.Client{Timeout: ChunkDownloadTimeout}
	}
	return &out
}

// poller builds a poller for one wait. errorIsTerminal selects the tool
// behaviour where a reported error alone ends the wait.
func (c *Config) poller(client Client, errorIsTerminal bool, log *slog.Logger) *jobs.Poller {
	p := jobs.New(client, log)
	p.Interval = c.PollInterval
	p.Timeout = c.PollTimeout
	p.ErrorIsTerminalAlone = errorIsTerminal
	p.Metrics = c.Metrics
	if c.Ledger != nil {
		p.Observer = c.Ledger
	}
	return p
}

func (c *Config) record(ctx context.Context, j store.Job, log *slog.Logger) {
	if c.Ledger == nil {
		return
	}
	if err := c.Ledger.Record(ctx, j); err != nil {
		log.Warn("ingestion: could not record job", slog.String("job_id", j.ID), slog.Any("error", err))
	}
}

// ParseOptions are the splitter options of a dry-run parse. They map onto
// adbpg.UploadOptions with the collection and DryRun fixed.
type ParseOptions struct {
	FileName           string
	ChunkSize          *int
	ChunkOverlap       *int
	DocumentLoaderName string
	// Separators is a JSON array of strings.
	Separators       string
	ZhTitleEnhance   *bool
	TextSplitterName string
	VLEnhance        *bool
	SplitterModel    string
}

func (o ParseOptions) upload() adbpg.UploadOptions {
	dryRun := true
	return adbpg.UploadOptions{
		Collection:         DryRunCollection,
		FileName:           o.FileName,
		ChunkSize:          o.ChunkSize,
		ChunkOverlap:       o.ChunkOverlap,
		DocumentLoaderName: o.DocumentLoaderName,
		Separators:         o.Separators,
		DryRun:             &dryRun,
		ZhTitleEnhance:     o.ZhTitleEnhance,
		TextSplitterName:   o.TextSplitterName,
		VLEnhance:          o.VLEnhance,
		SplitterModel:      o.SplitterModel,
	}
}

// Parser runs dry-run parse jobs and returns the chunks the service
// produced.
type Parser struct {
	// client issues collection, upload and job calls.
	client Client

	// resolver turns the locator into a local file or remote URL.
	resolver *files.Resolver

	// cfg holds the resolved configuration.
	cfg *Config

	log *slog.Logger
}

// NewParser constructs a Parser. resolver may be nil to use one built from
// the environment.
func NewParser(client Client, resolver *files.Resolver, cfg *Config, log *slog.Logger) (*Parser, error) {
	if client == nil {
		return nil, fmt.Errorf("ingestion: client must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	if resolver == nil {
		resolver = files.NewResolver(log)
	}
	return &Parser{client: client, resolver: resolver, cfg: cfg.withDefaults(), log: log}, nil
}

// Parse uploads locator for a dry run, waits for the job and returns one
// string per chunk: the chunk text, a newline and its metadata as JSON.
func (p *Parser) Parse(ctx context.Context, locator string, opts ParseOptions) ([]string, error) {
	if strings.TrimSpace(locator) == "" {
		return nil, fmt.Errorf("ingestion: %w: file locator is required", adbpg.ErrInvalidArgument)
	}
	if opts.FileName == "" {
		opts.FileName = InferFile(locator).FileName
	}

	var chunks []string
	err := p.resolver.Scope(ctx, locator, func(f *files.ResolvedFile) error {
		p.ensureCollection(ctx)

		up := opts.upload()
		var (
			resp *adbpg.Response
			err  error
		)
		if f.LocalPath != "" {
			p.log.Info("ingestion: parsing local file", slog.String("path", f.LocalPath))
			resp, err = p.client.UploadDocumentAsyncFile(ctx, up, f.LocalPath)
		} else {
			p.log.Info("ingestion: parsing remote URL", slog.String("url", f.RemoteURL))
			up.FileURL = f.RemoteURL
			resp, err = p.client.UploadDocumentAsync(ctx, up)
		}
		if err != nil {
			return fmt.Errorf("ingestion: upload for parse: %w", err)
		}
		jobID, err := adbpg.JobID(resp)
		if err != nil {
			return fmt.Errorf("ingestion: %w", err)
		}
		p.log.Info("ingestion: parse job started", slog.String("job_id", jobID))
		p.cfg.record(ctx, store.Job{
			ID:         jobID,
			Collection: DryRunCollection,
			FileName:   opts.FileName,
			Source:     locator,
			DryRun:     true,
		}, p.log)

		done, err := p.cfg.poller(p.client, false, p.log).Await(ctx, DryRunCollection, jobID)
		if err != nil {
			return fmt.Errorf("ingestion: %w", err)
		}
		chunkURL := done.Job().ChunkFileURL
		if chunkURL == "" {
			return fmt.Errorf("ingestion: No PlainChunkFileUrl in job response: %s", done.JSON())
		}

		chunks, err = p.download(ctx, chunkURL)
		return err
	})
	if err != nil {
		return nil, err
	}
	p.log.Info("ingestion: parse complete", slog.Int("chunks", len(chunks)))
	return chunks, nil
}

// ensureCollection creates the dry-run collection. Errors, including the
// collection already existing, are logged and ignored.
func (p *Parser) ensureCollection(ctx context.Context) {
	_, err := p.client.CreateDocumentCollection(ctx, adbpg.CreateCollectionOptions{
		Collection:  DryRunCollection,
		EnableGraph: false,
	})
	if err != nil {
		p.log.Info("ingestion: ignored error creating dry-run collection",
			slog.String("collection", DryRunCollection),
			slog.Any("error", err),
		)
		return
	}
	p.log.Info("ingestion: created dry-run collection", slog.String("collection", DryRunCollection))
}

// download fetches the chunk file and parses it.
func (p *Parser) download(ctx context.Context, chunkURL string) ([]string, error) {
	p.log.Info("ingestion: downloading chunk file", slog.String("url", chunkURL))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, chunkURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ingestion: creating request: %w", err)
	}
	resp, err := p.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingestion: Failed to download chunk file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ingestion: Failed to download chunk file: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ingestion: Failed to download chunk file: %w", err)
	}
	if !utf8.Valid(body) {
		return nil, fmt.Errorf("ingestion: chunk file is not valid UTF-8")
	}
	return ParseChunks(string(body)), nil
}

// ParseChunks turns a JSON Lines chunk file into chunk strings. Blank lines,
// invalid JSON and non-object lines are skipped. Metadata keeps the
// service's key order; a chunk without metadata gets "{}".
func ParseChunks(content string) []string {
	var chunks []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" || !gjson.Valid(line) {
			continue
		}
		obj := gjson.Parse(line)
		if !obj.IsObject() {
			continue
		}
		meta := "{}"
		if m := obj.Get("metadata"); m.Exists() && m.Type != gjson.Null {
			meta = m.Raw
		}
		chunks = append(chunks, obj.Get("page_content").String()+"\n"+meta)
	}
	return chunks
}
