// Package files turns a host file locator into something the service can
// ingest: a local path when the bytes are reachable, a remote URL otherwise.
package files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"
)

// DefaultBaseURL is the host's internal file API when no env var names one.
const DefaultBaseURL = "http://api:5001"

// DownloadTimeout bounds a single hosted-file download.
const DownloadTimeout = 120 * time.Second

// baseURLEnv lists the base URL variables in priority order.
var baseURLEnv = []string{
	"INTERNAL_FILES_URL",
	"FILES_URL",
	"DIFY_INNER_API_URL",
	"PLUGIN_DIFY_INNER_API_URL",
}

// Source says where a resolved file's bytes come from.
type Source string

const (
	// SourceLocal is an existing file on this machine.
	SourceLocal Source = "local"
	// SourceHosted was downloaded from the host into a temp file.
	SourceHosted Source = "hosted"
	// SourceRemote could not be fetched; pass the locator through as a URL.
	SourceRemote Source = "remote"
)

// ResolvedFile is the outcome of Resolve. Exactly one of LocalPath and
// RemoteURL is set.
type ResolvedFile struct {
	Source    Source
	LocalPath string
	RemoteURL string
	// TempFile is the path Release deletes; empty unless Source is hosted.
	TempFile string

	log      *slog.Logger
	released sync.Once
}

// Release deletes the temp file, if any. It is idempotent and never fails;
// deletion errors are logged.
func (f *ResolvedFile) Release() {
	if f == nil || f.TempFile == "" {
		return
	}
	f.released.Do(func() {
		if err := os.Remove(f.TempFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			f.log.Warn("files: failed to clean up temp file", slog.String("path", f.TempFile), slog.Any("error", err))
			return
		}
		f.log.Info("files: cleaned up temp file", slog.String("path", f.TempFile))
	})
}

// Resolver resolves locators. The zero value is usable.
type Resolver struct {
	// Client downloads hosted files. Defaults to a client with DownloadTimeout.
	Client *http.Client
	// BaseURL overrides the env lookup when non-empty.
	BaseURL string
	// TempDir is where downloads land. Defaults to os.TempDir().
	TempDir string
	Log     *slog.Logger
}

// NewResolver returns a Resolver using the env base URL.
func NewResolver(log *slog.Logger) *Resolver {
	return &Resolver{Log: log}
}

// BaseURLFromEnv returns the first set base URL variable, or DefaultBaseURL.
func BaseURLFromEnv() string {
	for _, k := range baseURLEnv {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return DefaultBaseURL
}

// JoinURL builds the download URL for locator. Absolute http(s) locators are
// used as-is.
func JoinURL(base, locator string) string {
	switch {
	case strings.HasPrefix(locator, "http://"), strings.HasPrefix(locator, "https://"):
		return locator
	case strings.HasPrefix(locator, "/"):
		return strings.TrimRight(base, "/") + locator
	default:
		return strings.TrimRight(base, "/") + "/" + locator
	}
}

func (r *Resolver) logger() *slog.Logger {
	if r.Log != nil {
		return r.Log
	}
	return slog.Default()
}

// Resolve never fails: a locator that is neither local nor downloadable
// becomes a remote URL.
func (r *Resolver) Resolve(ctx context.Context, locator string) *ResolvedFile {
	log := r.logger()

	if info, err := os.Stat(locator); err == nil && info.Mode().IsRegular() {
		log.Info("files: resolved as local file", slog.String("path", locator))
		return &ResolvedFile{Source: SourceLocal, LocalPath: locator, log: log}
	}

	path, err := r.download(ctx, locator)
	if err != nil {
		log.Warn("files: download failed, treating as remote URL",
			slog.String("locator", locator),
			slog.Any("error", err),
		)
		return &ResolvedFile{Source: SourceRemote, RemoteURL: locator, log: log}
	}
	log.Info("files: resolved as hosted file", slog.String("path", path))
	return &ResolvedFile{Source: SourceHosted, LocalPath: path, TempFile: path, log: log}
}

// Scope resolves locator, runs fn and releases the result on every exit path.
func (r *Resolver) Scope(ctx context.Context, locator string, fn func(*ResolvedFile) error) error {
	f := r.Resolve(ctx, locator)
	defer f.Release()
	return fn(f)
}

// Upload resolves locator and calls viaFile for local bytes or viaURL for a
// remote URL.
func Upload[T any](ctx context.Context, r *Resolver, locator string, viaFile func(path string) (T, error), viaURL func(url string) (T, error)) (T, error) {
	var out T
	err := r.Scope(ctx, locator, func(f *ResolvedFile) error {
		var err error
		if f.LocalPath != "" {
			r.logger().Info("files: using local file upload", slog.String("path", f.LocalPath))
			out, err = viaFile(f.LocalPath)
			return err
		}
		r.logger().Info("files: using URL upload", slog.String("url", f.RemoteURL))
		out, err = viaURL(f.RemoteURL)
		return err
	})
	return out, err
}

// download fetches locator from the host into a temp file.
func (r *Resolver) download(ctx context.Context, locator string) (string, error) {
	base := r.BaseURL
	if base == "" {
		base = BaseURLFromEnv()
	}
	full := JoinURL(base, locator)
	r.logger().Info("files: downloading hosted file", slog.String("url", full))

	client := r.Client
	if client == nil {
		client = &http.Client{Timeout: DownloadTimeout}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
	if err != nil {
		return "", fmt.Errorf("files: build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("files: download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("files: download: unexpected status %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(r.TempDir, "*.tmp")
	if err != nil {
		return "", fmt.Errorf("files: create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("files: save download: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("files: save download: %w", err)
	}
	return tmp.Name(), nil
}
