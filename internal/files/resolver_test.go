package files

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func Test_Resolve_LocalFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	r := &Resolver{Log: quietLogger(), BaseURL: "http://127.0.0.1:1"}

	f := r.Resolve(context.Background(), path)
	if f.Source != SourceLocal {
		t.Fatalf("expected local source, got %q", f.Source)
	}
	if f.TempFile != "" {
		t.Errorf("expected no temp file, got %q", f.TempFile)
	}
	f.Release()
	if _, err := os.Stat(path); err != nil {
		t.Errorf("local file must survive release: %v", err)
	}
}

func Test_Resolve_HostedDownload(t *testing.T) {
	t.Parallel()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		_, _ = w.Write([]byte("hosted bytes"))
	}))
	defer srv.Close()

	r := &Resolver{Log: quietLogger(), BaseURL: srv.URL + "/", TempDir: t.TempDir()}
	var tempPath string
	err := r.Scope(context.Background(), "/files/abc/file-preview?sign=1", func(f *ResolvedFile) error {
		if f.Source != SourceHosted {
			t.Fatalf("expected hosted source, got %q", f.Source)
		}
		tempPath = f.TempFile
		b, err := os.ReadFile(f.LocalPath)
		if err != nil {
			return err
		}
		if string(b) != "hosted bytes" {
			t.Errorf("expected 'hosted bytes', got %q", b)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Scope: %v", err)
	}
	if gotPath != "/files/abc/file-preview?sign=1" {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if _, err := os.Stat(tempPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected temp file to be removed, stat err: %v", err)
	}
}

func Test_Resolve_FallsBackToRemote(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	r := &Resolver{Log: quietLogger(), TempDir: t.TempDir()}
	locator := srv.URL + "/missing.pdf"
	f := r.Resolve(context.Background(), locator)
	if f.Source != SourceRemote {
		t.Fatalf("expected remote source, got %q", f.Source)
	}
	if f.RemoteURL != locator {
		t.Errorf("expected remote url %q, got %q", locator, f.RemoteURL)
	}
	if f.LocalPath != "" || f.TempFile != "" {
		t.Errorf("expected no local path, got %+v", f)
	}
}

func Test_Scope_ReleasesOnError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("data"))
	}))
	defer srv.Close()

	r := &Resolver{Log: quietLogger(), TempDir: t.TempDir()}
	boom := errors.New("boom")
	var tempPath string
	err := r.Scope(context.Background(), srv.URL+"/a", func(f *ResolvedFile) error {
		tempPath = f.TempFile
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if tempPath == "" {
		t.Fatal("expected a temp file")
	}
	if _, err := os.Stat(tempPath); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected temp file to be removed after error, stat err: %v", err)
	}
}

func Test_Upload_PicksPath(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "a.txt")
	if err := os.WriteFile(path, []byte("a"), 0o600); err != nil {
		t.Fatal(err)
	}
	r := &Resolver{Log: quietLogger()}

	got, err := Upload(context.Background(), r, path,
		func(p string) (string, error) { return "file:" + p, nil },
		func(u string) (string, error) { return "url:" + u, nil },
	)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if got != "file:"+path {
		t.Errorf("expected file path upload, got %q", got)
	}
}

func Test_JoinURL(t *testing.T) {
	t.Parallel()
	cases := []struct{ base, loc, want string }{
		{"http://api:5001/", "/files/x", "http://api:5001/files/x"},
		{"http://api:5001", "files/x", "http://api:5001/files/x"},
		{"http://api:5001", "https://cdn.example.com/a.pdf", "https://cdn.example.com/a.pdf"},
	}
	for _, tc := range cases {
		if got := JoinURL(tc.base, tc.loc); got != tc.want {
			t.Errorf("JoinURL(%q, %q) = %q, want %q", tc.base, tc.loc, got, tc.want)
		}
	}
}

func Test_BaseURLFromEnv(t *testing.T) {
	t.Setenv("INTERNAL_FILES_URL", "")
	t.Setenv("FILES_URL", "")
	t.Setenv("DIFY_INNER_API_URL", "http://inner:5001")
	t.Setenv("PLUGIN_DIFY_INNER_API_URL", "http://plugin:5001")
	if got := BaseURLFromEnv(); got != "http://inner:5001" {
		t.Errorf("expected DIFY_INNER_API_URL to win, got %q", got)
	}
	t.Setenv("DIFY_INNER_API_URL", "")
	t.Setenv("PLUGIN_DIFY_INNER_API_URL", "")
	if got := BaseURLFromEnv(); got != DefaultBaseURL {
		t.Errorf("expected default, got %q", got)
	}
}
