package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/adbpg-go/internal/rag"
	"github.com/54b3r/adbpg-go/internal/tools"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeRetriever implements Retriever and records its last call.
type fakeRetriever struct {
	records []rag.Record
	err     error

	calls       int
	knowledgeID string
	query       string
	setting     rag.Setting
}

func (f *fakeRetriever) Query(_ context.Context, knowledgeID, query string, s rag.Setting) ([]rag.Record, error) {
	f.calls++
	f.knowledgeID, f.query, f.setting = knowledgeID, query, s
	if f.err != nil {
		return nil, f.err
	}
	return f.records, nil
}

// fakeTool echoes its arguments, or fails with err.
type fakeTool struct {
	name string
	err  error
}

func (f *fakeTool) Name() string        { return f.name }
func (f *fakeTool) Description() string { return "fake " + f.name }

func (f *fakeTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{Name: f.name, Desc: f.Description()}, nil
}

func (f *fakeTool) Run(_ context.Context, args string) (*tools.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &tools.Result{Variables: map[string]any{"args": args}, Text: "done"}, nil
}

func (f *fakeTool) InvokableRun(ctx context.Context, args string, _ ...tool.Option) (string, error) {
	res, err := f.Run(ctx, args)
	if err != nil {
		return "", err
	}
	return res.Render()
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// newTestServer builds a *Server with fakes and an isolated registry.
func newTestServer() *Server {
	reg := prometheus.NewRegistry()
	return &Server{
		retriever: &fakeRetriever{},
		cfg:       &Config{ToolTimeout: time.Minute},
		log:       discardLogger(),
		metrics:   newServerMetrics(reg),
	}
}

func newToolRegistry(t *testing.T, ts ...tools.Tool) *tools.Registry {
	t.Helper()
	reg, err := tools.NewRegistry(ts)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

// ---------------------------------------------------------------------------
// POST /retrieval
// ---------------------------------------------------------------------------

func TestHandleRetrieval_Contract(t *testing.T) {
	t.Parallel()

	records := []rag.Record{{Title: "a.pdf", Content: "hello", Score: 0.9, Metadata: map[string]any{"page": float64(1)}}}

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantCode   int
		wantMsg    string
		wantReady  bool
		wantCalled bool
	}{
		{name: "empty body", body: "", wantStatus: http.StatusOK, wantReady: true},
		{name: "whitespace body", body: " \n\t", wantStatus: http.StatusOK, wantReady: true},
		{name: "empty object", body: "{}", wantStatus: http.StatusOK, wantReady: true},
		{name: "null", body: "null", wantStatus: http.StatusOK, wantReady: true},
		{name: "malformed", body: "{not json", wantStatus: http.StatusOK, wantCode: 1002, wantMsg: "Invalid JSON: "},
		{name: "array body", body: "[1]", wantStatus: http.StatusOK, wantCode: 1002, wantMsg: "Invalid JSON: "},
		{name: "missing query", body: `{"knowledge_id":"kb"}`, wantStatus: http.StatusBadRequest, wantCode: 1002, wantMsg: "query is required"},
		{name: "empty query", body: `{"knowledge_id":"kb","query":""}`, wantStatus: http.StatusBadRequest, wantCode: 1002, wantMsg: "query is required"},
		{name: "empty knowledge_id", body: `{"knowledge_id":"","query":"q"}`, wantStatus: http.StatusBadRequest, wantCode: 1002, wantMsg: "knowledge_id is required"},
		{name: "missing knowledge_id", body: `{"query":"q"}`, wantStatus: http.StatusBadRequest, wantCode: 1002, wantMsg: "knowledge_id is required"},
		{
			name:       "not found",
			body:       `{"knowledge_id":"kb","query":"q"}`,
			err:        errors.New("QueryContent failed: Code: Collection.NotFound"),
			wantStatus: http.StatusBadRequest, wantCode: 2001, wantMsg: "QueryContent failed: Code: Collection.NotFound",
			wantCalled: true,
		},
		{
			name:       "other remote error",
			body:       `{"knowledge_id":"kb","query":"q"}`,
			err:        errors.New("Throttling.User"),
			wantStatus: http.StatusBadRequest, wantCode: 1002, wantMsg: "Throttling.User",
			wantCalled: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer()
			fr := &fakeRetriever{records: records, err: tc.err}
			s.retriever = fr

			w := httptest.NewRecorder()
			s.handleRetrieval(w, httptest.NewRequest(http.MethodPost, "/retrieval", strings.NewReader(tc.body)))

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			if (fr.calls > 0) != tc.wantCalled {
				t.Errorf("retriever called = %v, want %v", fr.calls > 0, tc.wantCalled)
			}

			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if tc.wantReady {
				if body["status"] != "ok" || body["message"] != "Endpoint is ready" {
					t.Errorf("ready body = %v", body)
				}
				return
			}
			if got := int(body["error_code"].(float64)); got != tc.wantCode {
				t.Errorf("error_code = %d, want %d", got, tc.wantCode)
			}
			if msg, _ := body["error_msg"].(string); !strings.HasPrefix(msg, tc.wantMsg) {
				t.Errorf("error_msg = %q, want prefix %q", msg, tc.wantMsg)
			}
		})
	}
}

func TestHandleRetrieval_WhitespaceQueryIsSent(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fr := &fakeRetriever{records: []rag.Record{{Title: "a.pdf", Content: "hello", Score: 0.6}}}
	s.retriever = fr

	w := httptest.NewRecorder()
	s.handleRetrieval(w, httptest.NewRequest(http.MethodPost, "/retrieval", strings.NewReader(`{"knowledge_id":"kb","query":"  "}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	if fr.calls != 1 || fr.query != "  " {
		t.Errorf("retriever calls = %d, query = %q", fr.calls, fr.query)
	}
}

func TestHandleRetrieval_Success(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fr := &fakeRetriever{records: []rag.Record{
		{Title: "a.pdf", Content: "hello", Score: 0.75, Metadata: map[string]any{"page": float64(3)}},
	}}
	s.retriever = fr

	body := `{"knowledge_id":"kb","query":"what","retrieval_setting":{"top_k":"3","score_threshold":0.5}}`
	w := httptest.NewRecorder()
	s.handleRetrieval(w, httptest.NewRequest(http.MethodPost, "/retrieval", strings.NewReader(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	if fr.knowledgeID != "kb" || fr.query != "what" {
		t.Errorf("retriever got (%q, %q)", fr.knowledgeID, fr.query)
	}
	if fr.setting.TopK != 3 || fr.setting.ScoreThreshold != 0.5 {
		t.Errorf("setting = %+v, want TopK 3 threshold 0.5", fr.setting)
	}

	var resp retrievalResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Records) != 1 || resp.Records[0].Title != "a.pdf" || resp.Records[0].Metadata["page"] != float64(3) {
		t.Errorf("records = %+v", resp.Records)
	}
}

func TestHandleRetrieval_Defaults(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	fr := &fakeRetriever{}
	s.retriever = fr

	w := httptest.NewRecorder()
	s.handleRetrieval(w, httptest.NewRequest(http.MethodPost, "/retrieval", strings.NewReader(`{"knowledge_id":"kb","query":"q"}`)))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if fr.setting != rag.DefaultSetting {
		t.Errorf("setting = %+v, want %+v", fr.setting, rag.DefaultSetting)
	}
	if got := strings.TrimSpace(w.Body.String()); got != `{"records":[]}` {
		t.Errorf("body = %s, want empty records array", got)
	}
}

// ---------------------------------------------------------------------------
// POST /api/tools/{name}
// ---------------------------------------------------------------------------

func TestHandleTool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		tool       string
		wantStatus int
		wantField  string
	}{
		{name: "ok", tool: "echo", wantStatus: http.StatusOK, wantField: "variables"},
		{name: "tool error", tool: "broken", wantStatus: http.StatusBadRequest, wantField: "error"},
		{name: "unknown", tool: "missing", wantStatus: http.StatusNotFound, wantField: "error"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			s := newTestServer()
			s.tools = newToolRegistry(t, &fakeTool{name: "echo"}, &fakeTool{name: "broken", err: errors.New("broken: knowledgebase is required")})

			req := httptest.NewRequest(http.MethodPost, "/api/tools/"+tc.tool, strings.NewReader(`{"query":"q"}`))
			req.SetPathValue("name", tc.tool)
			w := httptest.NewRecorder()
			s.handleTool(w, req)

			if w.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d; body: %s", w.Code, tc.wantStatus, w.Body.String())
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if _, ok := body[tc.wantField]; !ok {
				t.Errorf("body %v lacks %q", body, tc.wantField)
			}
		})
	}
}

func TestHandleTool_PassesArguments(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.tools = newToolRegistry(t, &fakeTool{name: "echo"})

	req := httptest.NewRequest(http.MethodPost, "/api/tools/echo", strings.NewReader(`{"query":"q"}`))
	req.SetPathValue("name", "echo")
	w := httptest.NewRecorder()
	s.handleTool(w, req)

	var res tools.Result
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Variables["args"] != `{"query":"q"}` || res.Text != "done" {
		t.Errorf("result = %+v", res)
	}
}

// ---------------------------------------------------------------------------
// Routing through New
// ---------------------------------------------------------------------------

func TestNew_RoutesAndAuth(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := New(&fakeRetriever{}, newToolRegistry(t, &fakeTool{name: "echo"}), &Config{
		APIKey:          "secret",
		Logger:          discardLogger(),
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopRL)

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	do := func(method, path, token, body string) int {
		t.Helper()
		req, err := http.NewRequestWithContext(t.Context(), method, srv.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		resp.Body.Close()
		return resp.StatusCode
	}

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"health is public", http.MethodGet, "/api/health", "", "", http.StatusOK},
		{"ready is public", http.MethodGet, "/api/ready", "", "", http.StatusOK},
		{"metrics is public", http.MethodGet, "/metrics", "", "", http.StatusOK},
		{"retrieval needs token", http.MethodPost, "/retrieval", "", "", http.StatusForbidden},
		{"retrieval wrong token", http.MethodPost, "/retrieval", "nope", "", http.StatusForbidden},
		{"retrieval probe", http.MethodPost, "/retrieval", "secret", "", http.StatusOK},
		{"tool call", http.MethodPost, "/api/tools/echo", "secret", "{}", http.StatusOK},
		{"tool list", http.MethodGet, "/api/tools", "secret", "", http.StatusOK},
		{"retrieval is POST only", http.MethodGet, "/retrieval", "secret", "", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		if got := do(tc.method, tc.path, tc.token, tc.body); got != tc.want {
			t.Errorf("%s: status = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestNew_NilRetriever(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, nil, &Config{Logger: discardLogger()}); err == nil {
		t.Fatal("expected error for nil retriever")
	}
}
