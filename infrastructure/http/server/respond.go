package server

import (
	"chat-rooms/errors"
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError only ever exposes the kind and its stable message.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := errors.KindOf(err)
	status := errors.HTTPStatus(kind)
	attrs := []any{"method", r.Method, "path", r.URL.Path, "kind", kind, "error", err}
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", attrs...)
	} else {
		log.Info("Request rejected", attrs...)
	}
	writeJSON(w, status, errorBody{Error: string(kind), Message: errors.StableMessage(kind)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return errors.ErrInvalidRequest
	}
	return nil
}
