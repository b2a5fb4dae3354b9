package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/54b3r/adbpg-go/internal/logging"
)

// maxToolBody caps the request body of POST /api/tools/{name}.
const maxToolBody = 8 << 20

// handleTool handles POST /api/tools/{name}. The body is the tool's JSON
// arguments; the reply is the tool's rendered result.
func (s *Server) handleTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	log := logging.FromContext(r.Context()).With(slog.String("tool", name))

	t, ok := s.tools.Get(name)
	if !ok {
		writeJSON(r.Context(), w, http.StatusNotFound, toolErrorResponse{Tool: name, Error: "unknown tool"})
		return
	}

	args, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxToolBody))
	if err != nil {
		writeJSON(r.Context(), w, http.StatusBadRequest, toolErrorResponse{Tool: name, Error: "invalid request body"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ToolTimeout)
	defer cancel()

	start := time.Now()
	res, err := t.Run(ctx, string(args))
	s.metrics.toolDurationSeconds.WithLabelValues(name).Observe(time.Since(start).Seconds())

	if err != nil {
		outcome := "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
		s.metrics.toolCallsTotal.WithLabelValues(name, outcome).Inc()
		log.Warn("tool call failed", slog.String("outcome", outcome), slog.Any("error", err))
		writeJSON(r.Context(), w, http.StatusBadRequest, toolErrorResponse{Tool: name, Error: err.Error()})
		return
	}

	s.metrics.toolCallsTotal.WithLabelValues(name, "ok").Inc()
	log.Info("tool call complete", slog.Duration("duration", time.Since(start)))
	writeJSON(r.Context(), w, http.StatusOK, res)
}

// handleToolList handles GET /api/tools.
func (s *Server) handleToolList(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	out := make([]entry, 0, len(s.tools.Names()))
	for _, t := range s.tools.Tools() {
		out = append(out, entry{Name: t.Name(), Description: t.Description()})
	}
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{"tools": out})
}
