package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/adbpg-go/internal/rag"
	"github.com/54b3r/adbpg-go/internal/tools"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover the longest tool call, including upload job waits.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on /retrieval and /api/tools/*.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// ToolTimeout bounds a single POST /api/tools/{name} call. Defaults to 35m.
	ToolTimeout time.Duration
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to
	// prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// Retriever answers knowledge retrieval requests.
// *rag.KnowledgeRetriever satisfies it; tests inject a fake.
type Retriever interface {
	// Query runs a retrieval against knowledgeID and returns scored records.
	Query(ctx context.Context, knowledgeID, query string, s rag.Setting) ([]rag.Record, error)
}

// Server is the HTTP server that exposes knowledge retrieval and the tool set.
type Server struct {
	// retriever handles POST /retrieval.
	retriever Retriever
	// tools backs POST /api/tools/{name}. Nil disables the route.
	tools *tools.Registry
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
}

// retrievalRequest is the JSON body for POST /retrieval.
type retrievalRequest struct {
	// KnowledgeID names the document collection to query.
	KnowledgeID string `mapstructure:"knowledge_id"`
	// Query is the user's question.
	Query string `mapstructure:"query"`
	// RetrievalSetting overrides top_k and score_threshold.
	RetrievalSetting retrievalSetting `mapstructure:"retrieval_setting"`
}

type retrievalSetting struct {
	TopK           *int     `mapstructure:"top_k"`
	ScoreThreshold *float64 `mapstructure:"score_threshold"`
}

// retrievalResponse is the success body for POST /retrieval.
type retrievalResponse struct {
	Records []rag.Record `json:"records"`
}

// errorResponse is the failure body the host expects from POST /retrieval.
type errorResponse struct {
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// statusResponse answers validation probes.
type statusResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// toolErrorResponse is the failure body of POST /api/tools/{name}.
type toolErrorResponse struct {
	// Tool is the tool that was called.
	Tool string `json:"tool"`
	// Error is the failure text.
	Error string `json:"error"`
}
