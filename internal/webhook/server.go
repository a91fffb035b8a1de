// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/user/aide/internal/calendar"
)

// BriefingTrigger fires one briefing push immediately.
type BriefingTrigger func()

// Server is a lightweight HTTP handler for operational endpoints: health,
// the probed calendar sources, and a briefing trigger.
type Server struct {
	registry *calendar.Registry
	trigger  BriefingTrigger
	mux      *http.ServeMux
}

// NewServer creates a webhook Server over the probed source registry.
func NewServer(registry *calendar.Registry, trigger BriefingTrigger) *Server {
	s := &Server{
		registry: registry,
		trigger:  trigger,
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/sources", s.handleSources)
	s.mux.HandleFunc("POST /webhook/briefing", s.handleBriefing)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// sourceView is the JSON shape for GET /api/sources.
type sourceView struct {
	Name     string `json:"name"`
	SourceID string `json:"source_id"`
	Kind     string `json:"kind"`
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	sources := s.registry.Sources()
	views := make([]sourceView, len(sources))
	for i, src := range sources {
		views[i] = sourceView{Name: src.Name, SourceID: src.SourceID, Kind: src.Kind}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"count":   len(views),
		"sources": views,
	})
}

func (s *Server) handleBriefing(w http.ResponseWriter, r *http.Request) {
	if s.trigger == nil {
		http.Error(w, `{"error":"briefing not configured"}`, http.StatusNotFound)
		return
	}
	slog.Info("webhook briefing triggered")
	go s.trigger()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
}
