// Package api implements HTTP handlers and helpers for the waste routing service.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"wasteroute/internal/auth"
	"wasteroute/internal/events"
	"wasteroute/internal/metrics"
	"wasteroute/internal/model"
	"wasteroute/internal/opt"
	"wasteroute/internal/store"
)

// Planner is the part of the planner the handlers drive.
type Planner interface {
	RunCycle(ctx context.Context, trigger string) (model.CycleSummary, error)
	RunByMaterial(ctx context.Context, trigger string) (model.CycleSummary, error)
	AddRequestToRoute(ctx context.Context, routeID, requestID string) (model.Route, error)
	SetRouteStatus(ctx context.Context, routeID, status string) (model.Route, error)
	Engine() opt.Config
	Prices() map[model.Material]float64
}

// Scheduler exposes the automatic cycle's schedule. It may be nil.
type Scheduler interface {
	Spec() string
	Next() time.Time
	UpdateSchedule(spec string) error
}

type Server struct {
	Store     store.Store
	Planner   Planner
	Scheduler Scheduler
	Auth      *auth.Verifier
	Broker    events.Broker
	// Limiter throttles manual optimization triggers; nil disables it.
	Limiter *rate.Limiter
	// Debug is reported by /debug/info.
	Debug map[string]any
}

// Routes registers every endpoint on a new mux.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	// Optimization
	mux.HandleFunc("POST /v1/admin/optimize", s.admin(s.limited(s.OptimizeHandler)))
	mux.HandleFunc("POST /v1/admin/optimize/by-material", s.admin(s.limited(s.OptimizeByMaterialHandler)))
	mux.HandleFunc("GET /v1/admin/cycles", s.admin(s.CyclesHandler))
	mux.HandleFunc("GET /v1/admin/schedule", s.admin(s.ScheduleHandler))
	mux.HandleFunc("PUT /v1/admin/schedule", s.admin(s.ScheduleHandler))
	mux.HandleFunc("GET /v1/optimizer/config", s.OptimizerConfigHandler)

	// Routes
	mux.HandleFunc("GET /v1/routes", s.RoutesIndexHandler)
	mux.HandleFunc("GET /v1/routes/{id}", s.RouteByIDHandler)
	mux.HandleFunc("PATCH /v1/routes/{id}", s.admin(s.RouteStatusHandler))
	mux.HandleFunc("POST /v1/routes/{id}/requests", s.admin(s.RouteAddRequestHandler))

	// Agents
	mux.HandleFunc("GET /v1/agents/{id}/routes", s.AgentRoutesHandler)
	mux.HandleFunc("GET /v1/agents/{id}/routes/stream", s.AgentStreamHandler)

	// Health and ops
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.HandleFunc("GET /debug/info", s.DebugJSON)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	return mux
}

// limited rejects requests beyond the limiter's rate with 429.
func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Limiter != nil && !s.Limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			writeProblem(w, http.StatusTooManyRequests, "Too Many Requests", "optimization trigger rate exceeded", r.URL.Path)
			return
		}
		next(w, r)
	}
}
