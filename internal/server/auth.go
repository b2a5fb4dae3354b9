package server

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/54b3r/adbpg-go/internal/logging"
)

// Authorization error codes of the external knowledge API. Both answer 403.
const (
	codeAuthHeader = 1001
	codeAuthFailed = 1002
)

const msgAuthHeader = "Invalid Authorization header format. Expected 'Bearer <api-key>' format."

// authMiddleware checks the API key Dify sends with every external knowledge
// call. An empty apiKey disables the check.
//
// A missing or malformed header answers 403 with error_code 1001, a wrong
// key answers 403 with error_code 1002. The presented key is never logged.
func authMiddleware(apiKey string, m *serverMetrics, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	want := []byte(apiKey)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logging.FromContext(ctx)

		key, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			log.Warn("auth: malformed Authorization header",
				slog.Bool("header_present", r.Header.Get("Authorization") != ""))
			m.rejectedTotal.WithLabelValues(rejectAuthHeader).Inc()
			writeJSON(ctx, w, http.StatusForbidden, errorResponse{ErrorCode: codeAuthHeader, ErrorMsg: msgAuthHeader})
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), want) != 1 {
			log.Warn("auth: api key rejected")
			m.rejectedTotal.WithLabelValues(rejectAuthFailed).Inc()
			writeJSON(ctx, w, http.StatusForbidden, errorResponse{ErrorCode: codeAuthFailed, ErrorMsg: "Authorization failed"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// bearerToken parses "Bearer <key>". The scheme is case-insensitive; a
// missing header, another scheme or an empty key report ok=false.
func bearerToken(header string) (string, bool) {
	scheme, key, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	key = strings.TrimSpace(key)
	return key, key != ""
}
