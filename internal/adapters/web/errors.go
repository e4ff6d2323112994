package web

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"garage-api/internal/core"
)

type errorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeDomainError maps a core service error onto an HTTP status. Internal
// errors are logged server-side and returned as a generic message so database
// details never leak to clients.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.KindOf(err)
	switch kind {
	case core.KindNotFound:
		writeError(w, r, err.Error(), string(kind), http.StatusNotFound)
	case core.KindValidation, core.KindInvalidState:
		writeError(w, r, err.Error(), string(kind), http.StatusBadRequest)
	case core.KindUpstream:
		writeError(w, r, err.Error(), string(kind), http.StatusBadGateway)
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}

// writeJSON writes a success-enveloped JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(successResponse{Success: true, Data: v})
}

// writeJSONStatus is writeJSON with an explicit status code (e.g. 201).
func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(successResponse{Success: true, Data: v})
}
