package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mitchellh/mapstructure"

	"github.com/54b3r/adbpg-go/internal/adbpg"
	"github.com/54b3r/adbpg-go/internal/logging"
	"github.com/54b3r/adbpg-go/internal/rag"
)

// Error codes of the external knowledge API.
const (
	codeInvalidRequest = 1002
	codeNotFound       = 2001
)

// maxRetrievalBody caps the request body of POST /retrieval.
const maxRetrievalBody = 1 << 20

// handleRetrieval handles POST /retrieval. Validation failures of the body
// itself answer 200 because the host treats any non-200 as endpoint down.
func (s *Server) handleRetrieval(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRetrievalBody))
	if err != nil {
		s.retrievalFailed(w, r, http.StatusOK, codeInvalidRequest, "Invalid JSON: "+err.Error(), outcomeInvalid)
		return
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		log.Info("retrieval: validation request (empty body)")
		s.ready(w, r)
		return
	}

	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		log.Error("retrieval: failed to parse JSON", slog.Any("error", err))
		s.retrievalFailed(w, r, http.StatusOK, codeInvalidRequest, "Invalid JSON: "+err.Error(), outcomeInvalid)
		return
	}
	obj, isObject := body.(map[string]any)
	if body == nil || (isObject && len(obj) == 0) {
		log.Info("retrieval: validation request (empty JSON)")
		s.ready(w, r)
		return
	}
	if !isObject {
		s.retrievalFailed(w, r, http.StatusOK, codeInvalidRequest, "Invalid JSON: body must be an object", outcomeInvalid)
		return
	}

	var req retrievalRequest
	if err := decodeRetrieval(obj, &req); err != nil {
		s.retrievalFailed(w, r, http.StatusBadRequest, codeInvalidRequest, err.Error(), outcomeInvalid)
		return
	}
	// Only an absent query is rejected; whitespace reaches the service as is.
	if req.Query == "" {
		s.retrievalFailed(w, r, http.StatusBadRequest, codeInvalidRequest, "query is required", outcomeInvalid)
		return
	}
	if req.KnowledgeID == "" {
		s.retrievalFailed(w, r, http.StatusBadRequest, codeInvalidRequest, "knowledge_id is required", outcomeInvalid)
		return
	}

	setting := rag.DefaultSetting
	if req.RetrievalSetting.TopK != nil {
		setting.TopK = *req.RetrievalSetting.TopK
	}
	if req.RetrievalSetting.ScoreThreshold != nil {
		setting.ScoreThreshold = *req.RetrievalSetting.ScoreThreshold
	}
	log.Info("retrieval: processing request",
		slog.String("knowledge_id", req.KnowledgeID),
		slog.Int("top_k", setting.TopK),
		slog.Float64("score_threshold", setting.ScoreThreshold),
	)

	records, err := s.retriever.Query(ctx, req.KnowledgeID, req.Query, setting)
	if err != nil {
		log.Error("retrieval: API call failed", slog.Any("error", err))
		if adbpg.IsNotFound(err) {
			s.retrievalFailed(w, r, http.StatusBadRequest, codeNotFound, err.Error(), outcomeNotFound)
			return
		}
		s.retrievalFailed(w, r, http.StatusBadRequest, codeInvalidRequest, err.Error(), outcomeError)
		return
	}
	if records == nil {
		records = []rag.Record{}
	}

	s.metrics.retrievalRequestsTotal.WithLabelValues(outcomeOK).Inc()
	s.metrics.retrievalRecords.Observe(float64(len(records)))
	writeJSON(ctx, w, http.StatusOK, retrievalResponse{Records: records})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	s.metrics.retrievalRequestsTotal.WithLabelValues(outcomeReady).Inc()
	writeJSON(r.Context(), w, http.StatusOK, statusResponse{Status: "ok", Message: "Endpoint is ready"})
}

func (s *Server) retrievalFailed(w http.ResponseWriter, r *http.Request, status, code int, msg, outcome string) {
	s.metrics.retrievalRequestsTotal.WithLabelValues(outcome).Inc()
	writeJSON(r.Context(), w, status, errorResponse{ErrorCode: code, ErrorMsg: msg})
}

// decodeRetrieval fills req from the parsed body. Numbers sent as strings
// are accepted.
func decodeRetrieval(body map[string]any, req *retrievalRequest) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           req,
	})
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := dec.Decode(body); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}
