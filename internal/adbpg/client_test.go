package adbpg

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	openapi "github.com/alibabacloud-go/darabonba-openapi/v2/client"
	util "github.com/alibabacloud-go/tea-utils/v2/service"
	"github.com/alibabacloud-go/tea/tea"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeCaller records requests and replays scripted results per action.
type fakeCaller struct {
	calls   []fakeCall
	results map[string]map[string]interface{}
	errs    map[string]error
}

type fakeCall struct {
	action   string
	bodyType string
	body     map[string]interface{}
}

func (f *fakeCaller) CallApi(params *openapi.Params, req *openapi.OpenApiRequest, _ *util.RuntimeOptions) (map[string]interface{}, error) {
	action := tea.StringValue(params.Action)
	body, _ := req.Body.(map[string]interface{})
	f.calls = append(f.calls, fakeCall{action: action, bodyType: tea.StringValue(params.BodyType), body: body})
	if err := f.errs[action]; err != nil {
		return nil, err
	}
	if res, ok := f.results[action]; ok {
		return res, nil
	}
	return map[string]interface{}{"body": map[string]interface{}{"RequestId": "req-1"}}, nil
}

func (f *fakeCaller) last(t *testing.T) fakeCall {
	t.Helper()
	if len(f.calls) == 0 {
		t.Fatal("expected at least one call")
	}
	return f.calls[len(f.calls)-1]
}

func testCredentials() *Credentials {
	return &Credentials{
		AccessKeyID:            "ak",
		AccessKeySecret:        "sk",
		RegionID:               "cn-hangzhou",
		DBInstanceID:           "gp-123",
		Namespace:              "ns",
		NamespacePassword:      "nspw",
		ManagerAccount:         "admin",
		ManagerAccountPassword: "adminpw",
		ReadTimeout:            DefaultTimeoutMillis,
		ConnectTimeout:         DefaultTimeoutMillis,
	}
}

func newTestClient(api *fakeCaller) *Client {
	return &Client{
		creds:        testCredentials(),
		api:          api,
		openPlatform: api,
		httpClient:   http.DefaultClient,
		runtime:      &util.RuntimeOptions{},
		log:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func Test_Client_QueryContentText_Fields(t *testing.T) {
	t.Parallel()
	api := &fakeCaller{}
	c := newTestClient(api)

	k := 60
	_, err := c.QueryContentText(context.Background(), TextQueryOptions{
		Collection:    "kb",
		Query:         "what is adbpg",
		RecallWindow:  "-1, 2",
		HybridSearch:  "RRF",
		HybridSearchK: &k,
	})
	if err != nil {
		t.Fatalf("QueryContentText: %v", err)
	}

	call := api.last(t)
	if call.action != "QueryContent" {
		t.Errorf("expected 'QueryContent', got %q", call.action)
	}
	want := map[string]string{
		"Collection":        "kb",
		"Content":           "what is adbpg",
		"RecallWindow":      "[-1,2]",
		"HybridSearch":      "RRF",
		"HybridSearchArgs":  `{"RRF":{"k":60}}`,
		"Namespace":         "ns",
		"NamespacePassword": "nspw",
		"DBInstanceId":      "gp-123",
		"RegionId":          "cn-hangzhou",
	}
	for key, v := range want {
		if got := call.body[key]; got != v {
			t.Errorf("%s = %v, want %q", key, got, v)
		}
	}
	if _, ok := call.body["TopK"]; ok {
		t.Error("expected absent TopK to be omitted")
	}
}

func Test_Client_QueryContentText_BadRecallWindow(t *testing.T) {
	t.Parallel()
	api := &fakeCaller{}
	c := newTestClient(api)

	_, err := c.QueryContentText(context.Background(), TextQueryOptions{Collection: "kb", Query: "q", RecallWindow: "1,2,3"})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
	if len(api.calls) != 0 {
		t.Errorf("want no remote calls, got %d", len(api.calls))
	}
}

func Test_Client_CreateDocumentCollection_Encoding(t *testing.T) {
	t.Parallel()
	api := &fakeCaller{}
	c := newTestClient(api)

	ef, pq := 64, true
	_, err := c.CreateDocumentCollection(context.Background(), CreateCollectionOptions{
		Collection:         "kb",
		EntityTypes:        "person, place,",
		RelationshipTypes:  "  ",
		HNSWEfConstruction: &ef,
		PQEnable:           &pq,
	})
	if err != nil {
		t.Fatalf("CreateDocumentCollection: %v", err)
	}
	body := api.last(t).body
	if got := body["EntityTypes"]; got != `["person","place"]` {
		t.Errorf("EntityTypes = %v", got)
	}
	if _, ok := body["RelationshipTypes"]; ok {
		t.Error("expected blank RelationshipTypes to be omitted")
	}
	if got := body["HnswEfConstruction"]; got != "64" {
		t.Errorf("HnswEfConstruction = %v, want \"64\"", got)
	}
	if got := body["PqEnable"]; got != "1" {
		t.Errorf("PqEnable = %v, want \"1\"", got)
	}
	if got := body["ManagerAccount"]; got != "admin" {
		t.Errorf("ManagerAccount = %v", got)
	}
}

func Test_Client_UploadDocumentAsync_BadSeparators(t *testing.T) {
	t.Parallel()
	c := newTestClient(&fakeCaller{})
	_, err := c.UploadDocumentAsync(context.Background(), UploadOptions{
		Collection: "kb",
		FileURL:    "https://example.com/a.pdf",
		Separators: `{"not":"a list"}`,
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func Test_Client_UploadDocumentAsyncFile_Missing(t *testing.T) {
	t.Parallel()
	api := &fakeCaller{}
	c := newTestClient(api)
	_, err := c.UploadDocumentAsyncFile(context.Background(), UploadOptions{Collection: "kb"}, filepath.Join(t.TempDir(), "missing.pdf"))
	if !errors.Is(err, ErrFileNotFound) {
		t.Fatalf("expected ErrFileNotFound, got %v", err)
	}
	if len(api.calls) != 0 {
		t.Errorf("want no remote calls, got %d", len(api.calls))
	}
}

func Test_Client_UploadDocumentAsyncFile_Staged(t *testing.T) {
	t.Parallel()

	var gotKey, gotFile string
	oss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotKey = r.FormValue("key")
		f, _, err := r.FormFile("file")
		if err == nil {
			b, _ := io.ReadAll(f)
			gotFile = string(b)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer oss.Close()

	// The grant endpoint is "<bucket>.<endpoint>"; point it at the test server
	// by routing every request through a rewriting transport.
	hc := &http.Client{Transport: rewriteTransport{target: oss.URL}}

	api := &fakeCaller{results: map[string]map[string]interface{}{
		"AuthorizeFileUpload": {"body": map[string]interface{}{
			"AccessKeyId":   "tmp-ak",
			"Bucket":        "bucket",
			"Endpoint":      "oss.example.com",
			"ObjectKey":     "uploads/doc.txt",
			"EncodedPolicy": "policy",
			"Signature":     "sig",
		}},
		"UploadDocumentAsync": {"body": map[string]interface{}{"JobId": "job-1"}},
	}}
	c := newTestClient(api)
	c.httpClient = hc

	path := filepath.Join(t.TempDir(), "doc.txt")
	if err := os.WriteFile(path, []byte("hello"), 0o600); err != nil {
		t.Fatal(err)
	}

	resp, err := c.UploadDocumentAsyncFile(context.Background(), UploadOptions{Collection: "kb", FileName: "doc.txt"}, path)
	if err != nil {
		t.Fatalf("UploadDocumentAsyncFile: %v", err)
	}
	if id, _ := JobID(resp); id != "job-1" {
		t.Errorf("expected job id 'job-1', got %q", id)
	}
	if gotKey != "uploads/doc.txt" {
		t.Errorf("expected object key 'uploads/doc.txt', got %q", gotKey)
	}
	if gotFile != "hello" {
		t.Errorf("expected file body 'hello', got %q", gotFile)
	}
	if got := api.last(t).body["FileUrl"]; got != "http://bucket.oss.example.com/uploads/doc.txt" {
		t.Errorf("FileUrl = %v", got)
	}
}

type rewriteTransport struct{ target string }

func (rt rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	req := r.Clone(r.Context())
	u, err := req.URL.Parse(rt.target)
	if err != nil {
		return nil, err
	}
	req.URL.Scheme = u.Scheme
	req.URL.Host = u.Host
	req.Host = u.Host
	return http.DefaultTransport.RoundTrip(req)
}

func Test_Client_RemoteErrorWrapping(t *testing.T) {
	t.Parallel()
	sdkErr := &tea.SDKError{
		Code:       tea.String("Collection.NotFound"),
		Message:    tea.String("collection kb not found"),
		StatusCode: tea.Int(404),
	}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	api := &fakeCaller{errs: map[string]error{"QueryContent": sdkErr}}
	c := newTestClient(api)
	c.metrics = m

	_, err := c.QueryContentText(context.Background(), TextQueryOptions{Collection: "kb", Query: "q"})
	var rerr *RemoteError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected *RemoteError, got %T", err)
	}
	if rerr.Code != "Collection.NotFound" || rerr.StatusCode != 404 {
		t.Errorf("unexpected remote error fields: %+v", rerr)
	}
	if !IsNotFound(err) {
		t.Error("expected IsNotFound to match")
	}
	if got := testutil.ToFloat64(m.callsTotal.WithLabelValues("QueryContent", "not_found")); got != 1 {
		t.Errorf("want 1 not_found call recorded, got %v", got)
	}
}

func Test_Client_CancelledContext(t *testing.T) {
	t.Parallel()
	api := &fakeCaller{}
	c := newTestClient(api)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ListDocumentCollections(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(api.calls) != 0 {
		t.Errorf("want no remote calls, got %d", len(api.calls))
	}
}

func Test_Client_ChatWithKnowledgeBaseStream(t *testing.T) {
	t.Parallel()
	sse := strings.Join([]string{
		`data: {"ChatCompletion":{"Choices":[{"Message":{"Content":"Hel"}}]}}`,
		``,
		`data: {"ChatCompletion":{"Choices":[{"Message":{"Content":"lo"},"FinishReason":"stop"}]}}`,
		``,
		`data: [DONE]`,
		``,
	}, "\n")
	api := &fakeCaller{results: map[string]map[string]interface{}{
		"ChatWithKnowledgeBaseStream": {"body": io.NopCloser(strings.NewReader(sse))},
	}}
	c := newTestClient(api)

	topK := 5
	s, err := c.ChatWithKnowledgeBaseStream(context.Background(), KnowledgeChatOptions{
		Query:      "hi",
		Model:      "qwen-max",
		Collection: "kb",
		TopK:       &topK,
		System:     "be brief",
	})
	if err != nil {
		t.Fatalf("ChatWithKnowledgeBaseStream: %v", err)
	}
	defer s.Close()

	call := api.last(t)
	if call.bodyType != "binary" {
		t.Errorf("expected binary body type, got %q", call.bodyType)
	}
	if got := call.body["IncludeKnowledgeBaseResults"]; got != "true" {
		t.Errorf("IncludeKnowledgeBaseResults = %v", got)
	}
	mp, _ := call.body["ModelParams"].(string)
	if !strings.Contains(mp, `"Role":"system"`) || !strings.Contains(mp, `"Content":"hi"`) {
		t.Errorf("unexpected ModelParams: %s", mp)
	}
	kp, _ := call.body["KnowledgeParams"].(string)
	if !strings.Contains(kp, `"Collection":"kb"`) || !strings.Contains(kp, `"TopK":5`) {
		t.Errorf("unexpected KnowledgeParams: %s", kp)
	}

	var content strings.Builder
	for {
		c, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		content.WriteString(c.Content)
	}
	if content.String() != "Hello" {
		t.Errorf("expected 'Hello', got %q", content.String())
	}
}

func Test_Client_ChatStream_NoKnowledgeParams(t *testing.T) {
	t.Parallel()
	api := &fakeCaller{results: map[string]map[string]interface{}{
		"ChatWithKnowledgeBaseStream": {"body": ""},
	}}
	c := newTestClient(api)

	s, err := c.ChatStream(context.Background(), ChatOptions{
		Model:    "qwen-turbo",
		Messages: []ChatMessage{{Role: "user", Content: "ping"}},
		Stop:     []string{""},
	})
	if err != nil {
		t.Fatalf("ChatStream: %v", err)
	}
	if _, err := s.Recv(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF on empty body, got %v", err)
	}

	body := api.last(t).body
	if got := body["IncludeKnowledgeBaseResults"]; got != "false" {
		t.Errorf("IncludeKnowledgeBaseResults = %v", got)
	}
	if _, ok := body["KnowledgeParams"]; ok {
		t.Error("expected no KnowledgeParams")
	}
	if mp, _ := body["ModelParams"].(string); strings.Contains(mp, "Stop") {
		t.Errorf("expected blank stop list to be dropped: %s", mp)
	}
}
