// Package planner runs optimization cycles: it reads pending requests and
// active agents from the store, drives the engine in internal/opt, persists
// the resulting routes and announces them.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"wasteroute/internal/events"
	"wasteroute/internal/lease"
	"wasteroute/internal/metrics"
	"wasteroute/internal/model"
	"wasteroute/internal/opt"
	"wasteroute/internal/store"
)

var (
	ErrCycleInProgress   = errors.New("planner: optimization cycle already in progress")
	ErrCapacityExceeded  = errors.New("capacity would be exceeded")
	ErrRequestNotPending = errors.New("planner: request is not pending")
	ErrRouteClosed       = errors.New("planner: route is finished or cancelled")
	ErrNoLocation        = errors.New("planner: request has no location")
)

// Logf is the planner's logger; tests may replace it.
var Logf = log.Printf

// Options configures a Planner.
type Options struct {
	Engine opt.Config
	// Seed fixes every cycle's random stream; 0 draws a fresh seed per cycle.
	Seed        int64
	PricesPerKg map[model.Material]float64
	// SingleFlight rejects a cycle with ErrCycleInProgress while another runs.
	SingleFlight bool
	// Lease backs the single-flight guard; nil means an in-process lock.
	Lease        lease.Locker
	CycleTimeout time.Duration
	// Broker receives route.planned events; nil disables announcements.
	Broker events.Broker
	Now    func() time.Time
}

type Planner struct {
	store store.Store
	opts  Options
	lock  lease.Locker

	// mu serializes manual route mutations.
	mu sync.Mutex
}

func New(s store.Store, opts Options) *Planner {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	p := &Planner{store: s, opts: opts}
	if opts.SingleFlight {
		p.lock = opts.Lease
		if p.lock == nil {
			p.lock = lease.NewLocal()
		}
	}
	return p
}

// Engine returns the tuning the planner runs with.
func (p *Planner) Engine() opt.Config { return p.opts.Engine }

// Prices returns a copy of the material price table.
func (p *Planner) Prices() map[model.Material]float64 {
	out := make(map[model.Material]float64, len(p.opts.PricesPerKg))
	for k, v := range p.opts.PricesPerKg {
		out[k] = v
	}
	return out
}

type cycleBody func(ctx context.Context, sum *model.CycleSummary, rng *rand.Rand) error

// run wraps one cycle with the single-flight guard, an optional timeout,
// panic recovery, metrics and the persisted cycle record.
func (p *Planner) run(ctx context.Context, trigger string, body cycleBody) (sum model.CycleSummary, err error) {
	start := p.opts.Now()
	// elapsed time comes from the wall clock; Now only stamps the record
	began := time.Now()
	sum = model.CycleSummary{Trigger: trigger, StartedAt: start.UTC(), PerRoute: []model.RouteSummary{}}

	if p.lock != nil {
		release, lerr := p.lock.TryAcquire(ctx)
		if lerr != nil {
			if errors.Is(lerr, lease.ErrHeld) {
				metrics.Cycles.WithLabelValues(trigger, model.OutcomeSkipped).Inc()
				Logf("cycle trigger=%s skipped: another cycle in progress", trigger)
				return sum, ErrCycleInProgress
			}
			return sum, fmt.Errorf("run cycle: acquire lease: %w", lerr)
		}
		defer release()
	}
	if p.opts.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.CycleTimeout)
		defer cancel()
	}

	rng := opt.NewRand(p.opts.Seed)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("run cycle: panic: %v", r)
			}
		}()
		err = body(ctx, &sum, rng)
	}()

	elapsed := time.Since(began)
	sum.DurationMs = elapsed.Milliseconds()
	outcome := model.OutcomeOK
	switch {
	case err != nil:
		outcome = model.OutcomeError
	case sum.RoutesCreated == 0:
		outcome = model.OutcomeEmpty
	}
	metrics.Cycles.WithLabelValues(trigger, outcome).Inc()
	metrics.CycleDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
	metrics.RoutesCreated.Add(float64(sum.RoutesCreated))
	metrics.RequestsRouted.Add(float64(sum.RequestsProcessed))
	metrics.RequestsSkipped.Add(float64(sum.SkippedRequests))

	run := model.CycleRun{Outcome: outcome, Summary: sum}
	if err != nil {
		run.Error = err.Error()
		Logf("cycle trigger=%s outcome=%s routes=%d dur=%dms err=%v", trigger, outcome, sum.RoutesCreated, sum.DurationMs, err)
	} else {
		Logf("cycle trigger=%s outcome=%s routes=%d requests=%d skipped=%d dur=%dms",
			trigger, outcome, sum.RoutesCreated, sum.RequestsProcessed, sum.SkippedRequests, sum.DurationMs)
	}
	// the cycle record outlives a cancelled cycle context
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if _, rerr := p.store.SaveCycleRun(recCtx, run); rerr != nil {
		Logf("cycle trigger=%s save run: %v", trigger, rerr)
	}
	return sum, err
}
