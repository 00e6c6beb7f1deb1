// ABOUTME: Handlers for the service endpoints: root, health, datetime, random words and overview
// ABOUTME: The overview computes "today" in the configured timezone

package server

import (
	"net/http"
	"time"

	"github.com/2389/airway-api/internal/store"
	"github.com/2389/airway-api/internal/timeline"
)

// handleRoot handles GET /.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, RootResponse{
		Message: "Welcome to Test Project",
		Status:  "running",
	})
}

// handleHealth returns 200 while the process is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, HealthResponse{Status: "healthy", Version: Version})
}

// handleReady returns 200 when both stores answer, 503 otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	todos, err := s.stores.Todos.Count(r.Context())
	if err != nil {
		s.logger.Error("readiness check failed", "store", "todos", "error", err)
		sendJSONError(w, http.StatusServiceUnavailable, "todo store unavailable")
		return
	}
	milestones, err := s.stores.Milestones.Count(r.Context())
	if err != nil {
		s.logger.Error("readiness check failed", "store", "milestones", "error", err)
		sendJSONError(w, http.StatusServiceUnavailable, "milestone store unavailable")
		return
	}

	s.writeJSON(w, r, http.StatusOK, ReadyResponse{
		Status:     "ready",
		Todos:      todos,
		Milestones: milestones,
	})
}

// handleDatetime reports the current time in the configured timezone.
func (s *Server) handleDatetime(w http.ResponseWriter, r *http.Request) {
	now := s.now().In(s.location)
	s.writeJSON(w, r, http.StatusOK, DatetimeResponse{
		Datetime: now.Format(time.RFC3339Nano),
		Timezone: zoneName(now, s.location),
	})
}

// zoneName prefers the IANA name and falls back to the zone abbreviation for Local.
func zoneName(t time.Time, loc *time.Location) string {
	if loc != time.Local && loc.String() != "" {
		return loc.String()
	}
	abbrev, _ := t.Zone()
	return abbrev
}

// handleRandomWords returns an adjective and noun pair.
func (s *Server) handleRandomWords(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, s.words.Pair())
}

// handleOverview summarises milestone progress relative to today.
func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	milestones, err := s.stores.Milestones.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list milestones", "error", err)
		sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	today := store.DateOf(s.now().In(s.location))
	s.writeJSON(w, r, http.StatusOK, timeline.Summarize(milestones, today))
}
