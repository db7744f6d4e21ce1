package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/nkomarek/atelier/auth"
	"github.com/nkomarek/atelier/content"
	"github.com/nkomarek/atelier/storage"
)

const maxBodySize = 1 << 20 // request bodies other than uploads

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeSessionExpired signals that the bearer token was missing, unknown,
// or expired, before any data was touched.
func writeSessionExpired(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, ErrorResponse{
		Error:          "session missing or expired",
		SessionExpired: true,
	})
}

func writeRateLimited(w http.ResponseWriter) {
	writeJSON(w, http.StatusTooManyRequests, ErrorResponse{
		Error:       "too many failed attempts; try again later",
		RateLimited: true,
	})
}

// mapError converts a service error into a structured response. Unmapped
// errors are persistence failures: logged with detail, reported with a
// generic message so no internal error text crosses the boundary.
func (a *API) mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCode):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrNotConfigured):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrSessionExpired):
		writeSessionExpired(w)
	case errors.Is(err, content.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		a.audit.logger.Error("request failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// decodeJSON decodes a size-limited JSON request body, answering 400 on
// malformed input. The bool result reports whether the handler may proceed.
func decodeJSON[T any](w http.ResponseWriter, r *http.Request, limit int64) (T, bool) {
	var v T
	body := http.MaxBytesReader(w, r.Body, limit)
	defer io.Copy(io.Discard, body)
	dec := json.NewDecoder(body)
	if err := dec.Decode(&v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return v, false
	}
	return v, true
}
