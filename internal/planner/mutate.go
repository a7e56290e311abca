package planner

import (
	"context"
	"errors"
	"fmt"

	"wasteroute/internal/events"
	"wasteroute/internal/model"
	"wasteroute/internal/opt"
	"wasteroute/internal/store"
)

// AddRequestToRoute appends a pending request as the last stop of a route.
// Unlike the automatic pipeline, capacity is a hard limit here: the change
// is rejected with ErrCapacityExceeded when the new total weight would pass
// the agent's capacity score.
func (p *Planner) AddRequestToRoute(ctx context.Context, routeID, requestID string) (model.Route, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.store.GetRoute(ctx, routeID)
	if err != nil {
		return model.Route{}, fmt.Errorf("add request: get route %s: %w", routeID, err)
	}
	if r.Status == model.RouteFinished || r.Status == model.RouteCancelled {
		return model.Route{}, fmt.Errorf("add request: route %s is %s: %w", routeID, r.Status, ErrRouteClosed)
	}
	req, err := p.store.GetRequest(ctx, requestID)
	if err != nil {
		return model.Route{}, fmt.Errorf("add request: get request %s: %w", requestID, err)
	}
	if !req.Pending() {
		return model.Route{}, fmt.Errorf("add request: request %s is %s: %w", requestID, req.Status, ErrRequestNotPending)
	}
	if req.Location == nil {
		return model.Route{}, fmt.Errorf("add request: request %s: %w", requestID, ErrNoLocation)
	}

	cfg := p.opts.Engine
	now := p.opts.Now()
	c := opt.Collector{ID: r.AgentID}
	if r.AgentID != "" {
		a, err := p.store.GetAgent(ctx, r.AgentID)
		switch {
		case err == nil:
			c = collectors([]model.Agent{a})[0]
		case !errors.Is(err, store.ErrNotFound):
			return model.Route{}, fmt.Errorf("add request: get agent %s: %w", r.AgentID, err)
		}
	}
	if limit := opt.CapacityScore(c, cfg, now); r.TotalWeightKg+req.WeightKg > limit {
		return model.Route{}, fmt.Errorf("add request: %.1f kg + %.1f kg over %.1f kg: %w", r.TotalWeightKg, req.WeightKg, limit, ErrCapacityExceeded)
	}

	points := append(stopsToPoints(r.Stops), opt.WeightedPoint{
		ID:       req.ID,
		Lat:      req.Location.Lat,
		Lon:      req.Location.Lng,
		WeightKg: req.WeightKg,
		Material: string(req.Material),
	})
	rebuilt := Assemble(r.AgentID, points, cfg, p.opts.PricesPerKg, now)
	rebuilt.ID = r.ID
	rebuilt.Status = r.Status
	rebuilt.Material = r.Material
	rebuilt.Algorithm = r.Algorithm
	rebuilt.CreatedAt = r.CreatedAt
	if err := p.store.UpdateRoute(ctx, rebuilt); err != nil {
		return model.Route{}, fmt.Errorf("add request: update route %s: %w", routeID, err)
	}
	Logf("route id=%s add request=%s stops=%d weight=%.1fkg", r.ID, req.ID, len(rebuilt.Stops), rebuilt.TotalWeightKg)
	p.announce(events.RouteUpdated, rebuilt)
	return rebuilt, nil
}

// SetRouteStatus moves a route through planned, active, finished and
// cancelled. Finished and cancelled routes are closed for changes.
func (p *Planner) SetRouteStatus(ctx context.Context, routeID, status string) (model.Route, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	r, err := p.store.GetRoute(ctx, routeID)
	if err != nil {
		return model.Route{}, fmt.Errorf("set route status: get route %s: %w", routeID, err)
	}
	if r.Status == status {
		return r, nil
	}
	if r.Status == model.RouteFinished || r.Status == model.RouteCancelled {
		return model.Route{}, fmt.Errorf("set route status: route %s is %s: %w", routeID, r.Status, ErrRouteClosed)
	}
	r.Status = status
	r.UpdatedAt = p.opts.Now().UTC()
	if err := p.store.UpdateRoute(ctx, r); err != nil {
		return model.Route{}, fmt.Errorf("set route status: update route %s: %w", routeID, err)
	}
	Logf("route id=%s status=%s", r.ID, status)
	p.announce(events.RouteUpdated, r)
	return r, nil
}
