package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/agent-orchestrator/core/internal/domain"
	"github.com/agent-orchestrator/core/internal/port/gitprovider"
)

// ---------------------------------------------------------------------------
// Request helpers
// ---------------------------------------------------------------------------

// readJSON decodes a JSON request body with a size limit.
func readJSON[T any](w http.ResponseWriter, r *http.Request, bodyLimit int64) (T, bool) {
	var v T
	r.Body = http.MaxBytesReader(w, r.Body, bodyLimit)
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		if err.Error() == "http: request body too large" {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		} else {
			writeError(w, http.StatusBadRequest, "invalid request body")
		}
		return v, false
	}
	return v, true
}

// urlParam is a short alias for chi.URLParam.
func urlParam(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// providerParam parses the {provider} URL parameter into a provider type.
func providerParam(w http.ResponseWriter, r *http.Request) (gitprovider.Type, bool) {
	t := gitprovider.Type(urlParam(r, "provider"))
	if !t.Valid() {
		writeError(w, http.StatusBadRequest, "unknown provider")
		return "", false
	}
	return t, true
}

// requireField writes a 400 error and returns false when value is empty.
func requireField(w http.ResponseWriter, value, fieldName string) bool {
	if value == "" {
		writeError(w, http.StatusBadRequest, fieldName+" is required")
		return false
	}
	return true
}

// ---------------------------------------------------------------------------
// Response helpers
// ---------------------------------------------------------------------------

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeDomainError(w http.ResponseWriter, err error, fallbackMsg string) {
	var provErr *gitprovider.Error

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, fallbackMsg)
	case errors.Is(err, domain.ErrInvalid):
		msg := strings.TrimPrefix(err.Error(), domain.ErrInvalid.Error()+": ")
		writeError(w, http.StatusBadRequest, msg)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.As(err, &provErr):
		writeProviderError(w, provErr)
	default:
		slog.Error("unhandled domain error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeProviderError maps provider error kinds onto HTTP statuses. Remote
// failures pass through as 502 so clients can tell local faults from
// provider ones.
func writeProviderError(w http.ResponseWriter, err *gitprovider.Error) {
	switch err.Kind {
	case gitprovider.KindUnsupported:
		writeError(w, http.StatusNotImplemented, err.Message)
	case gitprovider.KindAuth, gitprovider.KindDenied:
		writeError(w, http.StatusUnauthorized, err.Message)
	case gitprovider.KindTimeout:
		writeError(w, http.StatusRequestTimeout, err.Message)
	default:
		writeError(w, http.StatusBadGateway, err.Message)
	}
}

// writeInternalError logs the actual error server-side and returns a generic message to the client.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "internal server error")
}
