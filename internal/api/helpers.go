package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"

	"stormlightlabs.org/propline/internal/core"
)

// ErrorResponse is the JSON body written for every non-2xx API response.
// Only Kind/Error are ever exposed to clients; the underlying cause stays
// server-side in logs, per spec §7's propagation policy.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	data, err := json.Marshal(v)
	if err != nil {
		log.Error("writeJSON marshal error", "err", err)
		return
	}

	if _, err := w.Write(data); err != nil {
		log.Error("writeJSON write error", "err", err)
	}
}

func writeInternalServerError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

func writeBadRequest(w http.ResponseWriter, err string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err})
}

func writeNotFound(w http.ResponseWriter, r string) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("%v not found", r)})
}

// writeError writes an error response with the appropriate HTTP status code:
// 404 for NotFoundError, 400 for ValidationError, 503 for storage
// unavailability, 500 for everything else. The underlying cause text is
// logged but never put in the response body.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case core.IsNotFound(err):
		log.Warn("not found", "err", err)
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "not found"})
	case core.IsValidation(err):
		log.Warn("validation error", "err", err)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request"})
	case core.IsStorageUnavailable(err):
		log.Error("storage unavailable", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "storage unavailable", Kind: "storage_failure"})
	default:
		log.Error("internal error", "err", err)
		writeInternalServerError(w, err)
	}
}

func getIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func getIntPathValue(r *http.Request, key string) int {
	val := r.PathValue(key)
	if val == "" {
		return 0
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return i
}

func getFloatQuery(r *http.Request, key string, defaultVal float64) float64 {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}

	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}
