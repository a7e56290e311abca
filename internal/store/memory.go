package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"wasteroute/internal/model"
)

// Memory is a simple in-memory store used when no DATABASE_URL is set.
type Memory struct {
	mu       sync.Mutex
	requests map[string]model.CollectionRequest
	reqOrder []string // insertion order
	agents   map[string]model.Agent
	agOrder  []string
	routes   map[string]model.Route
	rtOrder  []string
	cycles   []model.CycleRun
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		requests: map[string]model.CollectionRequest{},
		agents:   map[string]model.Agent{},
		routes:   map[string]model.Route{},
		now:      time.Now,
	}
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) PendingRequests(ctx context.Context) ([]model.CollectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CollectionRequest{}
	for _, id := range m.reqOrder {
		if r := m.requests[id]; r.Pending() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) ActiveAgents(ctx context.Context) ([]model.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Agent{}
	for _, id := range m.agOrder {
		a := m.agents[id]
		if a.Kind == model.AgentCollector && a.Status == model.AgentActive {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *Memory) GetRequest(ctx context.Context, id string) (model.CollectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return model.CollectionRequest{}, ErrNotFound
	}
	return r, nil
}

func (m *Memory) GetAgent(ctx context.Context, id string) (model.Agent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.agents[id]
	if !ok {
		return model.Agent{}, ErrNotFound
	}
	return a, nil
}

func (m *Memory) PersistRoute(ctx context.Context, r model.Route) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := m.now().UTC()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	if _, exists := m.routes[r.ID]; !exists {
		m.rtOrder = append(m.rtOrder, r.ID)
	}
	m.routes[r.ID] = cloneRoute(r)
	m.markAssigned(r)
	return r.ID, nil
}

func (m *Memory) UpdateRoute(ctx context.Context, r model.Route) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.routes[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = m.now().UTC()
	m.routes[r.ID] = cloneRoute(r)
	m.markAssigned(r)
	return nil
}

// markAssigned must be called with mu held.
func (m *Memory) markAssigned(r model.Route) {
	for _, s := range r.Stops {
		if req, ok := m.requests[s.RequestID]; ok && req.Pending() {
			req.Status = model.RequestAssigned
			m.requests[s.RequestID] = req
		}
	}
}

func (m *Memory) GetRoute(ctx context.Context, id string) (model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.routes[id]
	if !ok {
		return model.Route{}, ErrNotFound
	}
	return cloneRoute(r), nil
}

func (m *Memory) ListRoutes(ctx context.Context, status, cursor string, limit int) ([]model.Route, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = pageSize(limit)
	start := 0
	if cursor != "" {
		for i, id := range m.rtOrder {
			if id == cursor {
				start = i + 1
				break
			}
		}
	}
	out := []model.Route{}
	var next string
	for i := start; i < len(m.rtOrder) && len(out) < limit; i++ {
		r := m.routes[m.rtOrder[i]]
		if status == "" || r.Status == status {
			out = append(out, cloneRoute(r))
		}
		next = m.rtOrder[i]
	}
	if len(out) < limit {
		next = ""
	}
	return out, next, nil
}

func (m *Memory) ListRoutesForAgent(ctx context.Context, agentID string) ([]model.Route, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Route{}
	for _, id := range m.rtOrder {
		if r := m.routes[id]; r.AgentID == agentID {
			out = append(out, cloneRoute(r))
		}
	}
	return out, nil
}

func (m *Memory) SaveCycleRun(ctx context.Context, run model.CycleRun) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	m.cycles = append(m.cycles, run)
	return run.ID, nil
}

// ListCycleRuns returns the most recent runs first.
func (m *Memory) ListCycleRuns(ctx context.Context, limit int) ([]model.CycleRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	limit = pageSize(limit)
	out := []model.CycleRun{}
	for i := len(m.cycles) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.cycles[i])
	}
	return out, nil
}

func (m *Memory) UpsertRequests(ctx context.Context, reqs []model.CollectionRequest) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created, updated := 0, 0
	for _, r := range reqs {
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Status == "" {
			r.Status = model.RequestRequested
		}
		if r.CreatedAt.IsZero() {
			r.CreatedAt = m.now().UTC()
		}
		if _, ok := m.requests[r.ID]; ok {
			updated++
		} else {
			m.reqOrder = append(m.reqOrder, r.ID)
			created++
		}
		m.requests[r.ID] = r
	}
	return created, updated, nil
}

func (m *Memory) UpsertAgents(ctx context.Context, agents []model.Agent) (int, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created, updated := 0, 0
	for _, a := range agents {
		if a.ID == "" {
			a.ID = uuid.New().String()
		}
		if a.Kind == "" {
			a.Kind = model.AgentCollector
		}
		if a.Status == "" {
			a.Status = model.AgentActive
		}
		if _, ok := m.agents[a.ID]; ok {
			updated++
		} else {
			m.agOrder = append(m.agOrder, a.ID)
			created++
		}
		m.agents[a.ID] = a
	}
	return created, updated, nil
}

func cloneRoute(r model.Route) model.Route {
	r.Stops = append([]model.RouteStop(nil), r.Stops...)
	return r
}
