package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/store"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("server: encode response", zap.Error(err))
	}
}

// writeError maps the error taxonomy onto status codes. Validation and
// conflict messages go to the caller verbatim; adapter and invariant
// failures answer with an opaque message while the detail is logged
// server-side only.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case fault.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case fault.IsConflict(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case fault.IsAdapterFailure(err):
		zap.L().Error("server: adapter failure",
			zap.String("path", r.URL.Path),
			zap.String("detail", eris.ToString(err, true)),
		)
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": "verification provider unavailable, please try again later",
		})
	case fault.IsInvariant(err):
		zap.L().Error("server: invariant violation",
			zap.String("path", r.URL.Path),
			zap.String("detail", eris.ToString(err, true)),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal inconsistency detected, please contact support",
		})
	default:
		zap.L().Error("server: request failed",
			zap.String("path", r.URL.Path),
			zap.String("detail", eris.ToString(err, true)),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "internal error, please try again later",
		})
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

// requestLogger logs one line per request with status and latency.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
