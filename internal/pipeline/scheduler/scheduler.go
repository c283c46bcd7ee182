// Package scheduler drives a workflow on its schedule: once per closed
// interval, one run at a time, never repeating a recorded logical date.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/logging"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/graph"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/models"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/runstore"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/schedule"
)

type Runner interface {
	Run(ctx context.Context, wf *graph.Workflow, logicalDate time.Time) (*models.Run, error)
}

type Scheduler struct {
	wf       *graph.Workflow
	interval schedule.Interval
	store    runstore.Repository
	runner   Runner
	logger   logging.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func New(wf *graph.Workflow, store runstore.Repository, runner Runner, logger logging.Logger) (*Scheduler, error) {
	interval, err := schedule.Parse(wf.Schedule)
	if err != nil {
		return nil, fmt.Errorf("workflow %s: %w", wf.ID, err)
	}
	return &Scheduler{
		wf:       wf,
		interval: interval,
		store:    store,
		runner:   runner,
		logger:   logger.With("workflow_id", wf.ID),
		now:      func() time.Time { return time.Now().UTC() },
		after:    time.After,
	}, nil
}

// Pending returns the logical dates that should run now, oldest first.
// Without catch-up that is at most the latest closed interval. A date is
// pending only while the store has no run for exactly that date.
func (s *Scheduler) Pending(ctx context.Context) ([]time.Time, error) {
	due, ok := s.interval.LatestDue(s.wf.StartDate, s.now())
	if !ok {
		return nil, nil
	}

	if !s.wf.Catchup {
		done, err := s.recorded(ctx, due)
		if err != nil || done {
			return nil, err
		}
		return []time.Time{due}, nil
	}

	next := s.interval.First(s.wf.StartDate)
	last, err := s.store.Last(ctx, s.wf.ID)
	if err != nil && !runstore.IsNotFound(err) {
		return nil, fmt.Errorf("load last run: %w", err)
	}
	// Runs past due (manual ones) say nothing about the gap before due.
	if last != nil && !last.LogicalDate.After(due) {
		next = s.interval.Next(s.wf.StartDate, last.LogicalDate)
	}

	var out []time.Time
	for d := next; !d.After(due); d = s.interval.Next(s.wf.StartDate, d) {
		done, err := s.recorded(ctx, d)
		if err != nil {
			return nil, err
		}
		if !done {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Scheduler) recorded(ctx context.Context, logicalDate time.Time) (bool, error) {
	_, err := s.store.Get(ctx, s.wf.ID, logicalDate)
	switch {
	case err == nil:
		return true, nil
	case runstore.IsNotFound(err):
		return false, nil
	default:
		return false, fmt.Errorf("look up run %s: %w", logicalDate.Format(time.DateOnly), err)
	}
}

// Tick runs every pending interval and returns how many runs it started.
// A failed run is recorded and does not stop later ones.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	dates, err := s.Pending(ctx)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, d := range dates {
		if ctx.Err() != nil {
			return started, ctx.Err()
		}
		started++
		run, err := s.runner.Run(ctx, s.wf, d)
		switch {
		case err != nil && run == nil:
			return started, err
		case err != nil:
			s.logger.Warn(ctx, "scheduled run failed", "run_id", run.ID, "logical_date", d.Format(time.DateOnly), "error", err)
		default:
			s.logger.Info(ctx, "scheduled run finished", "run_id", run.ID, "logical_date", d.Format(time.DateOnly))
		}
	}
	return started, nil
}

// Start ticks at every interval boundary until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info(ctx, "scheduler started", "schedule", s.interval.Expr, "catchup", s.wf.Catchup)
	for {
		if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error(ctx, "scheduler tick failed", "error", err)
		}

		now := s.now()
		next := s.interval.NextBoundary(s.wf.StartDate, now)
		s.logger.Debug(ctx, "waiting for next interval", "next", next)

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "scheduler stopped")
			return nil
		case <-s.after(next.Sub(now)):
		}
	}
}
