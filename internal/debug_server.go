package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"chat-rooms/infrastructure/storage"

	"github.com/dgraph-io/badger/v4"
)

const defaultInspectLimit = 200

type StatsProvider func() map[string]any

type InspectPage struct {
	Prefix string           `json:"prefix"`
	Items  []storage.Record `json:"items"`
}

// NewDebugHandler serves the admin endpoints:
//
//	GET /debug/stats                 runtime counters
//	GET /debug/inspect?prefix=&limit= decoded badger entries
func NewDebugHandler(db *badger.DB, stats StatsProvider, log *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /debug/stats", func(w http.ResponseWriter, _ *http.Request) {
		snapshot := map[string]any{}
		if stats != nil {
			snapshot = stats()
		}
		writeDebugJSON(w, log, http.StatusOK, snapshot)
	})

	mux.HandleFunc("GET /debug/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "room:"
		}
		limit := defaultInspectLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}

		items, err := storage.Scan(db, prefix, limit)
		if err != nil {
			log.Error("Inspect scan failed", "prefix", prefix, "error", err)
			http.Error(w, "scan failed", http.StatusInternalServerError)
			return
		}
		writeDebugJSON(w, log, http.StatusOK, InspectPage{Prefix: prefix, Items: items})
	})

	return mux
}

func writeDebugJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("Failed to write debug response", "error", err)
	}
}
