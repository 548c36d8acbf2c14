package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/tenkview/internal/layout"
	"github.com/dgallion1/tenkview/internal/pipeline"
	"github.com/dgallion1/tenkview/internal/riskfactor"
	"github.com/dgallion1/tenkview/internal/section"
	"github.com/dgallion1/tenkview/internal/store"
)

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrInvalidName), errors.Is(err, section.ErrUnknownSection):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, section.ErrSectionNotFound),
		errors.Is(err, riskfactor.ErrRiskNotFound):
		return http.StatusNotFound
	case errors.Is(err, layout.ErrUnreadablePDF):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, pipeline.ErrQueueFull):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	}
	jsonError(w, err.Error(), code)
}
