// Package scheduler triggers optimization cycles on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"wasteroute/internal/model"
	"wasteroute/internal/planner"
)

// DefaultSpec runs a cycle every thirty minutes.
const DefaultSpec = "@every 30m"

// Runner is the part of the planner the scheduler drives.
type Runner interface {
	RunCycle(ctx context.Context, trigger string) (model.CycleSummary, error)
}

// Scheduler wraps a cron instance with one optimization job. A panicking
// job is recovered and a tick that finds the previous run still going is
// skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner

	mu    sync.Mutex
	spec  string
	jobID cron.EntryID

	// ctx lives from Start to Stop; cycles of a stopped scheduler are cancelled.
	ctx    context.Context
	cancel context.CancelFunc
}

func New(r Runner, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	logger := cron.PrintfLogger(log.Default())
	return &Scheduler{
		cron:   cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		runner: r,
		spec:   spec,
		ctx:    context.Background(),
	}
}

// Start registers the job and starts the cron loop. A stopped scheduler
// may be started again.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.cron.AddFunc(s.spec, s.tick)
	if err != nil {
		return fmt.Errorf("scheduler: schedule %q: %w", s.spec, err)
	}
	if s.jobID != 0 {
		s.cron.Remove(s.jobID)
	}
	s.jobID = id
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron.Start()
	log.Printf("scheduler started spec=%q next=%s", s.spec, s.cron.Entry(id).Next.Format(time.RFC3339))
	return nil
}

// Stop halts the cron loop, cancels a running cycle and waits for it.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
	<-done.Done()
	log.Println("scheduler stopped")
}

// UpdateSchedule swaps the job's schedule. An invalid spec keeps the old one.
func (s *Scheduler) UpdateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("scheduler: parse %q: %w", spec, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Remove(s.jobID)
	id, err := s.cron.AddFunc(spec, s.tick)
	if err != nil {
		return fmt.Errorf("scheduler: schedule %q: %w", spec, err)
	}
	s.jobID, s.spec = id, spec
	log.Printf("scheduler schedule updated spec=%q", spec)
	return nil
}

// Spec returns the active schedule.
func (s *Scheduler) Spec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.spec
}

// Next is the next planned tick; zero before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.Entry(s.jobID).Next
}

// RunNow runs one cycle outside the schedule.
func (s *Scheduler) RunNow(ctx context.Context) (model.CycleSummary, error) {
	return s.runner.RunCycle(ctx, model.TriggerManual)
}

// tick never returns an error: a failed cycle is logged and the next tick
// proceeds normally.
func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_, err := s.runner.RunCycle(ctx, model.TriggerScheduled)
	switch {
	case errors.Is(err, planner.ErrCycleInProgress):
		log.Printf("scheduled cycle skipped: %v", err)
	case err != nil:
		log.Printf("scheduled cycle failed: %v", err)
	}
}
