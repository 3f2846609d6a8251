// Package handler contains the HTTP layer: request decoding, boundary
// validation and the mapping from domain errors to status codes. Handlers
// never touch the repositories directly.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/expense-tracker/internal/apperror"
)

// errorResponse is the error shape every endpoint returns. Fields carries
// per-field validation messages when there are several.
type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"details,omitempty"`
}

// writeJSON sends a JSON response. Headers and status must go out before the
// body; encoding failures after that point can only be logged.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError translates a domain error into an HTTP response. The service
// layer knows nothing about status codes; this is the single place where
// apperror sentinels become 400/401/404.
//
// Conflicts map to 400 rather than 409: clients treat a taken username or
// email as an input problem, same as any other validation failure.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError

		switch {
		case errors.Is(err, apperror.ErrValidation), errors.Is(err, apperror.ErrConflict):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		}

		if status != http.StatusInternalServerError {
			fields := appErr.Fields
			// Single-field failures carry the field name in Field; surface
			// it under details the same way multi-field failures do.
			if len(fields) == 0 && appErr.Field != "" {
				fields = map[string]string{appErr.Field: appErr.Message}
			}
			writeJSON(w, status, errorResponse{Error: appErr.Message, Fields: fields})
			return
		}
	}

	// Unknown error: never leak internals to the client.
	slog.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "An internal error occurred"})
}
