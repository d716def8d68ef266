package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/janpfeifer/GoSlot/internal/history"
	"k8s.io/klog/v2"
)

// StatsResponse is returned by /api/stats.
type StatsResponse struct {
	LiveSessions int            `json:"live_sessions"`
	History      *history.Stats `json:"history,omitempty"`
}

const (
	defaultRecent = 20
	maxRecent     = 500
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		klog.Warningf("Failed to write JSON response: %v", err)
	}
}

// HandleStats reports the live sessions and, if enabled, the history totals.
func (s *ServerState) HandleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := StatsResponse{LiveSessions: len(s.Sessions)}
	s.mu.RUnlock()

	if s.history != nil {
		st, err := s.history.Stats(r.Context())
		if err != nil {
			klog.Errorf("Failed to read history stats: %v", err)
			http.Error(w, "failed to read history", http.StatusInternalServerError)
			return
		}
		resp.History = &st
	}
	writeJSON(w, http.StatusOK, resp)
}

// HandleRecent lists the last rounds of the history, newest first. The
// number of rounds is given by the "n" query parameter.
func (s *ServerState) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		http.Error(w, "round history is disabled", http.StatusNotFound)
		return
	}
	n := defaultRecent
	if v := r.URL.Query().Get("n"); v != "" {
		var err error
		n, err = strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = min(n, maxRecent)
	}
	entries, err := s.history.Recent(r.Context(), n)
	if err != nil {
		klog.Errorf("Failed to read recent rounds: %v", err)
		http.Error(w, "failed to read history", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}
