package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"wasteroute/internal/model"
	"wasteroute/internal/planner"
	"wasteroute/internal/store"
)

// errorStatus maps domain errors to an HTTP status and problem title.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, planner.ErrCycleInProgress):
		return http.StatusConflict, "Cycle In Progress"
	case errors.Is(err, planner.ErrCapacityExceeded):
		return http.StatusConflict, "Capacity Exceeded"
	case errors.Is(err, planner.ErrRouteClosed), errors.Is(err, planner.ErrRequestNotPending):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, planner.ErrNoLocation):
		return http.StatusUnprocessableEntity, "Unprocessable Request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "Timeout"
	}
	return http.StatusInternalServerError, "Internal Error"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, title := errorStatus(err)
	writeProblem(w, status, title, err.Error(), r.URL.Path)
}

// OptimizeHandler handles POST /v1/admin/optimize: one manual automatic cycle.
func (s *Server) OptimizeHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Planner.RunCycle(r.Context(), model.TriggerManual)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// OptimizeByMaterialHandler handles POST /v1/admin/optimize/by-material.
func (s *Server) OptimizeByMaterialHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := s.Planner.RunByMaterial(r.Context(), model.TriggerMaterial)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// CyclesHandler handles GET /v1/admin/cycles, newest first.
func (s *Server) CyclesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path)
			return
		}
		limit = n
	}
	runs, err := s.Store.ListCycleRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": runs})
}

// ScheduleHandler handles GET/PUT /v1/admin/schedule.
func (s *Server) ScheduleHandler(w http.ResponseWriter, r *http.Request) {
	if s.Scheduler == nil {
		writeProblem(w, http.StatusServiceUnavailable, "Scheduler Disabled", "", r.URL.Path)
		return
	}
	if r.Method == http.MethodPut {
		var in model.ScheduleInput
		if err := decodeBody(r, &in); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid schedule", err.Error(), r.URL.Path)
			return
		}
		if err := s.Scheduler.UpdateSchedule(in.Spec); err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid schedule", err.Error(), r.URL.Path)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"spec": s.Scheduler.Spec(), "next": s.Scheduler.Next()})
}

// OptimizerConfigHandler returns the engine tuning and price table in effect.
func (s *Server) OptimizerConfigHandler(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"engine":      s.Planner.Engine(),
		"pricesPerKg": s.Planner.Prices(),
	}
	if s.Scheduler != nil {
		out["schedule"] = s.Scheduler.Spec()
	}
	writeJSON(w, http.StatusOK, out)
}

// RoutesIndexHandler handles GET /v1/routes?status=&cursor=&limit=.
func (s *Server) RoutesIndexHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if err := validateListQuery(status); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid query", err.Error(), r.URL.Path)
		return
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid limit", v, r.URL.Path)
			return
		}
		limit = n
	}
	items, next, err := s.Store.ListRoutes(r.Context(), status, q.Get("cursor"), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "nextCursor": next})
}

// RouteByIDHandler handles GET /v1/routes/{id}.
func (s *Server) RouteByIDHandler(w http.ResponseWriter, r *http.Request) {
	rt, err := s.Store.GetRoute(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// RouteStatusHandler handles PATCH /v1/routes/{id}.
func (s *Server) RouteStatusHandler(w http.ResponseWriter, r *http.Request) {
	var in model.RoutePatch
	if err := decodeBody(r, &in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid route patch", err.Error(), r.URL.Path)
		return
	}
	rt, err := s.Planner.SetRouteStatus(r.Context(), r.PathValue("id"), in.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// RouteAddRequestHandler handles POST /v1/routes/{id}/requests.
func (s *Server) RouteAddRequestHandler(w http.ResponseWriter, r *http.Request) {
	var in model.AddRequestInput
	if err := decodeBody(r, &in); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid request", err.Error(), r.URL.Path)
		return
	}
	rt, err := s.Planner.AddRequestToRoute(r.Context(), r.PathValue("id"), in.RequestID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt)
}

// AgentRoutesHandler handles GET /v1/agents/{id}/routes for admins and the agent itself.
func (s *Server) AgentRoutesHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !s.canSeeAgent(w, r, id) {
		return
	}
	items, err := s.Store.ListRoutesForAgent(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) canSeeAgent(w http.ResponseWriter, r *http.Request, agentID string) bool {
	p := s.getPrincipal(r)
	switch {
	case p.Role == "":
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid credentials", r.URL.Path)
		return false
	case !p.IsAdmin() && p.Subject != agentID:
		writeProblem(w, http.StatusForbidden, "Forbidden", "not authorized for agent routes", r.URL.Path)
		return false
	}
	return true
}

// Health
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	if err := s.Store.Ping(ctx); err != nil {
		writeProblem(w, http.StatusServiceUnavailable, "Not Ready", err.Error(), r.URL.Path)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
