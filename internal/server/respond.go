package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"agentgames/internal/backend"
	"agentgames/internal/logging"
	"agentgames/internal/replay"
	"agentgames/internal/session"
	"agentgames/internal/storage"
)

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error(logger, "failed to encode response", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, logger *slog.Logger) {
	body := map[string]string{"error": message}
	if reqID := RequestIDFromContext(r.Context()); reqID != "" {
		body["requestId"] = reqID
	}
	writeJSON(w, status, body, logger)
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound), errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, replay.ErrMatchOutOfRange), errors.Is(err, replay.ErrUnknownIntent):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrStale):
		return http.StatusConflict
	}
	if _, ok := backend.AsStatusError(err); ok {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger := s.requestLogger(r)
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Error(logger, "request failed", err)
	}
	writeError(w, r, status, err.Error(), logger)
}

func (s *Server) requestLogger(r *http.Request) *slog.Logger {
	return logging.FromContext(r.Context(), s.logger)
}
