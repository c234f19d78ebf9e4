package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "agrodoc/internal/errors"
	"agrodoc/internal/logger"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Module("http").Warn("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	httpErr := apperrors.MapToHTTP(err)
	log := logger.Module("http")
	if httpErr.StatusCode >= http.StatusInternalServerError {
		log.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", httpErr.StatusCode,
			"error", err)
	} else {
		log.Debug("request rejected", "path", r.URL.Path, "code", httpErr.Code)
	}
	writeJSON(w, httpErr.StatusCode, httpErr.ToErrorResponse())
}

// decodeJSON reads a JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return apperrors.ErrInvalidRequest.Wrap(err)
	}
	return nil
}
