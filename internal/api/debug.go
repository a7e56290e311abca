package api

import (
	"net/http"
	"time"

	"wasteroute/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Debug,
	}
	if s.Scheduler != nil {
		info["schedule"] = map[string]any{"spec": s.Scheduler.Spec(), "next": s.Scheduler.Next()}
	}
	writeJSON(w, http.StatusOK, info)
}
