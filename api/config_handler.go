package api

import (
	"net/http"

	"github.com/seenimoa/navcompare/internal/config"
)

// handleGetConfig returns the running configuration with the store DSN masked.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration loaded")
		return
	}
	cfg := *s.cfg
	if cfg.Store.DSN != "" {
		cfg.Store.DSN = config.MaskDSN(cfg.Store.DSN)
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: cfg})
}

// handleGetConfigSources reports where each endpoint and credential comes from.
func (s *Server) handleGetConfigSources(w http.ResponseWriter, r *http.Request) {
	if s.cfg == nil {
		writeError(w, http.StatusNotFound, "no configuration loaded")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: config.CheckSources(s.cfg)})
}
