package store

import (
	"context"
	"errors"

	"wasteroute/internal/model"
)

// Store is the persistence interface used by the planner and the API server.
type Store interface {
	// Planner input
	PendingRequests(ctx context.Context) ([]model.CollectionRequest, error)
	ActiveAgents(ctx context.Context) ([]model.Agent, error)
	GetRequest(ctx context.Context, id string) (model.CollectionRequest, error)
	GetAgent(ctx context.Context, id string) (model.Agent, error)

	// Planner output. PersistRoute assigns an id when empty and marks every
	// request on the route as assigned.
	PersistRoute(ctx context.Context, r model.Route) (string, error)
	UpdateRoute(ctx context.Context, r model.Route) error

	// Routes
	GetRoute(ctx context.Context, id string) (model.Route, error)
	ListRoutes(ctx context.Context, status, cursor string, limit int) ([]model.Route, string, error)
	ListRoutesForAgent(ctx context.Context, agentID string) ([]model.Route, error)

	// Cycle history
	SaveCycleRun(ctx context.Context, run model.CycleRun) (string, error)
	ListCycleRuns(ctx context.Context, limit int) ([]model.CycleRun, error)

	// Imports
	UpsertRequests(ctx context.Context, reqs []model.CollectionRequest) (created, updated int, err error)
	UpsertAgents(ctx context.Context, agents []model.Agent) (created, updated int, err error)

	Ping(ctx context.Context) error
}

var ErrNotFound = errors.New("not found")

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

func pageSize(limit int) int {
	if limit <= 0 || limit > maxPageSize {
		return defaultPageSize
	}
	return limit
}
