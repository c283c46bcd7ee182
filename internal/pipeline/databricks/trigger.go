package databricks

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/dmitrijs2005/lakehouse/internal/logging"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/graph"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/models"
	"github.com/sethvargo/go-retry"
)

const (
	cancelTimeout = 30 * time.Second
	// pollRetries bounds how many transient runs/get failures in a row are
	// tolerated before the run is given up on.
	pollRetries = 3
)

// Trigger starts a task's job and blocks until the run is terminal.
type Trigger struct {
	conns        *Connections
	pollInterval time.Duration
	logger       logging.Logger

	after func(time.Duration) <-chan time.Time
}

func NewTrigger(conns *Connections, pollInterval time.Duration, logger logging.Logger) *Trigger {
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	return &Trigger{conns: conns, pollInterval: pollInterval, logger: logger, after: time.After}
}

// Trigger returns the remote run even when it failed, so the caller can
// record where to look. A run that is not SUCCESS wraps common.ErrJobFailed.
// Transient polling errors are retried. If polling fails for good or ctx
// ends while waiting, the remote run is cancelled so a retry never leaves
// two live runs of the same job.
func (t *Trigger) Trigger(ctx context.Context, task *graph.Task) (models.RemoteRun, error) {
	client, err := t.conns.Get(task.ConnID)
	if err != nil {
		return models.RemoteRun{}, err
	}

	runID, err := client.RunNow(ctx, task.JobID)
	if err != nil {
		return models.RemoteRun{}, err
	}
	remote := models.RemoteRun{RunID: runID}
	log := t.logger.With("task_id", task.ID, "job_id", task.JobID, "run_id", runID)
	log.Info(ctx, "job run started")

	for {
		run, err := t.poll(ctx, client, runID, log)
		if err != nil {
			t.cancel(client, runID, log)
			return remote, err
		}
		if run.RunPageURL != "" {
			remote.PageURL = run.RunPageURL
		}
		log.Debug(ctx, "job run polled", "life_cycle_state", run.State.LifeCycleState, "result_state", run.State.ResultState)

		if run.State.Terminal() {
			if run.State.Succeeded() {
				log.Info(ctx, "job run succeeded", "run_page_url", remote.PageURL)
				return remote, nil
			}
			return remote, fmt.Errorf("%w: job %d run %d ended %s/%s: %s", common.ErrJobFailed,
				task.JobID, runID, run.State.LifeCycleState, run.State.ResultState, run.State.StateMessage)
		}

		select {
		case <-ctx.Done():
			t.cancel(client, runID, log)
			return remote, ctx.Err()
		case <-t.after(t.pollInterval):
		}
	}
}

func (t *Trigger) poll(ctx context.Context, client JobsAPI, runID int64, log logging.Logger) (*Run, error) {
	var run *Run
	b := retry.WithMaxRetries(pollRetries, retry.NewConstant(t.pollInterval))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		r, err := client.GetRun(ctx, runID)
		if err != nil {
			if Transient(err) {
				log.Warn(ctx, "job run poll failed, retrying", "error", err)
				return retry.RetryableError(err)
			}
			return err
		}
		run = r
		return nil
	})
	return run, err
}

func (t *Trigger) cancel(client JobsAPI, runID int64, log logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), cancelTimeout)
	defer cancel()
	if err := client.CancelRun(ctx, runID); err != nil {
		log.Warn(ctx, "failed to cancel job run", "error", err)
		return
	}
	log.Warn(ctx, "job run cancelled")
}
