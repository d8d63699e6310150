package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/starford/doclife/internal/apperr"
	"github.com/starford/doclife/internal/header"
	"github.com/starford/doclife/internal/policy"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error" validate:"required"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}

// writeError maps service errors to HTTP status codes. Unknown errors are
// logged and reported as 500 without detail.
func writeError(w http.ResponseWriter, err error, op string, attrs ...any) {
	var status int
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict), errors.Is(err, apperr.ErrAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidName), errors.Is(err, apperr.ErrInvalidPath),
		errors.Is(err, policy.ErrTimestampMissing), errors.Is(err, policy.ErrTimestampMalformed):
		status = http.StatusBadRequest
	case errors.Is(err, apperr.ErrImmutable), errors.Is(err, apperr.ErrNotTimestamped),
		errors.Is(err, apperr.ErrNotArchivable), errors.Is(err, header.ErrNoHeader):
		status = http.StatusUnprocessableEntity
	default:
		slog.Error(op+" failed", append(attrs, slog.String("error", err.Error()))...)
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, status, errorBody(err.Error()))
}
