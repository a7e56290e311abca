package planner

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"wasteroute/internal/events"
	"wasteroute/internal/metrics"
	"wasteroute/internal/model"
	"wasteroute/internal/opt"
)

// RunCycle runs the automatic pipeline over every pending request:
// cluster, sequence, refine, balance, assemble, persist and announce.
func (p *Planner) RunCycle(ctx context.Context, trigger string) (model.CycleSummary, error) {
	return p.run(ctx, trigger, func(ctx context.Context, sum *model.CycleSummary, rng *rand.Rand) error {
		reqs, agents, err := p.load(ctx)
		if err != nil {
			return fmt.Errorf("run cycle: %w", err)
		}
		points := routable(reqs, sum)
		if len(points) == 0 || len(agents) == 0 {
			return nil
		}
		routes, err := p.plan(ctx, points, agents, rng)
		if err != nil {
			return fmt.Errorf("run cycle: %w", err)
		}
		return p.persist(ctx, routes, sum)
	})
}

// RunByMaterial partitions pending requests by material and runs the
// pipeline independently per material, in sorted material order. Every
// material draws on the full agent pool.
func (p *Planner) RunByMaterial(ctx context.Context, trigger string) (model.CycleSummary, error) {
	return p.run(ctx, trigger, func(ctx context.Context, sum *model.CycleSummary, rng *rand.Rand) error {
		reqs, agents, err := p.load(ctx)
		if err != nil {
			return fmt.Errorf("run by material: %w", err)
		}
		points := routable(reqs, sum)
		if len(points) == 0 || len(agents) == 0 {
			return nil
		}
		byMaterial := map[string][]opt.WeightedPoint{}
		for _, pt := range points {
			byMaterial[pt.Material] = append(byMaterial[pt.Material], pt)
		}
		materials := make([]string, 0, len(byMaterial))
		for m := range byMaterial {
			materials = append(materials, m)
		}
		sort.Strings(materials)

		for i, m := range materials {
			routes, err := p.plan(ctx, byMaterial[m], agents, opt.DeriveRand(rng, uint64(i)))
			if err != nil {
				return fmt.Errorf("run by material: material=%s: %w", m, err)
			}
			for j := range routes {
				routes[j].Material = model.Material(m)
			}
			if err := p.persist(ctx, routes, sum); err != nil {
				return fmt.Errorf("run by material: material=%s: %w", m, err)
			}
		}
		return nil
	})
}

func (p *Planner) load(ctx context.Context) ([]model.CollectionRequest, []model.Agent, error) {
	reqs, err := p.store.PendingRequests(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list pending requests: %w", err)
	}
	agents, err := p.store.ActiveAgents(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("list active agents: %w", err)
	}
	return reqs, agents, nil
}

// routable drops requests without coordinates, counting them as skipped.
func routable(reqs []model.CollectionRequest, sum *model.CycleSummary) []opt.WeightedPoint {
	points := make([]opt.WeightedPoint, 0, len(reqs))
	for _, r := range reqs {
		if r.Location == nil {
			sum.SkippedRequests++
			Logf("skip request id=%s: missing coordinates", r.ID)
			continue
		}
		points = append(points, opt.WeightedPoint{
			ID:       r.ID,
			Lat:      r.Location.Lat,
			Lon:      r.Location.Lng,
			WeightKg: r.WeightKg,
			Material: string(r.Material),
		})
	}
	return points
}

// plan turns points into one route per balanced group. No I/O happens here.
func (p *Planner) plan(ctx context.Context, points []opt.WeightedPoint, agents []model.Agent, rng *rand.Rand) ([]model.Route, error) {
	cfg := p.opts.Engine
	k := min(len(agents), len(points))
	groups, err := opt.Cluster(points, k, cfg, opt.DeriveRand(rng, 0))
	if err != nil {
		return nil, fmt.Errorf("cluster: %w", err)
	}

	// streams are derived up front so results do not depend on scheduling
	streams := make([]*rand.Rand, len(groups))
	for i := range groups {
		streams[i] = opt.DeriveRand(rng, uint64(i+1))
	}
	ordered := make([][]opt.WeightedPoint, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers(cfg))
	for i, grp := range groups {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("group %d: panic: %v", i, r)
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			res := opt.Refine(opt.Sequence(grp, cfg.Start), cfg, streams[i])
			metrics.OptimizerGain.WithLabelValues(res.Metrics.Algorithm).Observe(res.Metrics.Gain())
			ordered[i] = res.Order
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("refine: %w", err)
	}

	now := p.opts.Now()
	routes := []model.Route{}
	for _, a := range opt.Balance(collectors(agents), ordered, cfg, now) {
		for _, grp := range a.Groups {
			routes = append(routes, Assemble(a.CollectorID, grp, cfg, p.opts.PricesPerKg, now))
		}
	}
	return routes, nil
}

func (p *Planner) persist(ctx context.Context, routes []model.Route, sum *model.CycleSummary) error {
	for _, r := range routes {
		id, err := p.store.PersistRoute(ctx, r)
		if err != nil {
			return fmt.Errorf("persist route agent=%s: %w", r.AgentID, err)
		}
		r.ID = id
		sum.RoutesCreated++
		sum.RequestsProcessed += len(r.Stops)
		sum.PerRoute = append(sum.PerRoute, model.RouteSummary{
			RouteID:         r.ID,
			AgentID:         r.AgentID,
			Stops:           r.RequestIDs(),
			TotalDistanceKm: r.TotalDistanceKm,
			DurationMin:     r.EstimatedDurationMin,
			TotalWeightKg:   r.TotalWeightKg,
		})
		metrics.RouteDistance.Observe(r.TotalDistanceKm)
		p.announce(events.RoutePlanned, r)
	}
	return nil
}

func (p *Planner) announce(kind string, r model.Route) {
	if p.opts.Broker == nil || r.AgentID == "" {
		return
	}
	p.opts.Broker.Publish(r.AgentID, events.Event{Type: kind, Data: map[string]any{
		"routeId":                  r.ID,
		"stops":                    len(r.Stops),
		"totalDistanceKm":          r.TotalDistanceKm,
		"estimatedDurationMinutes": r.EstimatedDurationMin,
		"totalWeightKg":            r.TotalWeightKg,
		"material":                 string(r.Material),
	}})
}

func collectors(agents []model.Agent) []opt.Collector {
	out := make([]opt.Collector, len(agents))
	for i, a := range agents {
		out[i] = opt.Collector{ID: a.ID, CapacityKg: a.CapacityKg, JoinedAt: a.CreatedAt}
	}
	return out
}

func workers(cfg opt.Config) int {
	if cfg.Workers > 0 {
		return cfg.Workers
	}
	return runtime.GOMAXPROCS(0)
}
