// Package runner executes one workflow run: tasks in declared order, each
// retried per its policy, with every state change written to the run store.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/dmitrijs2005/lakehouse/internal/logging"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/graph"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/models"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/runstore"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// Trigger starts the remote job of a task and waits for its outcome.
type Trigger interface {
	Trigger(ctx context.Context, task *graph.Task) (models.RemoteRun, error)
}

type TriggerFunc func(ctx context.Context, task *graph.Task) (models.RemoteRun, error)

func (f TriggerFunc) Trigger(ctx context.Context, task *graph.Task) (models.RemoteRun, error) {
	return f(ctx, task)
}

type Runner struct {
	store   runstore.Repository
	trigger Trigger
	logger  logging.Logger

	now   func() time.Time
	newID func() string
}

func New(store runstore.Repository, trigger Trigger, logger logging.Logger) *Runner {
	return &Runner{
		store:   store,
		trigger: trigger,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   uuid.NewString,
	}
}

// Run executes wf for logicalDate. The returned run is never nil once the
// workflow validated; a failed run also returns an error wrapping
// common.ErrJobFailed.
func (r *Runner) Run(ctx context.Context, wf *graph.Workflow, logicalDate time.Time) (*models.Run, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	run := &models.Run{
		ID:          r.newID(),
		WorkflowID:  wf.ID,
		LogicalDate: logicalDate.UTC(),
		State:       models.RunRunning,
		StartedAt:   r.now(),
	}
	for _, t := range wf.Tasks {
		run.Tasks = append(run.Tasks, &models.TaskInstance{
			RunID:  run.ID,
			TaskID: t.ID,
			JobID:  t.JobID,
			State:  models.TaskQueued,
		})
	}

	log := r.logger.With("workflow_id", wf.ID, "run_id", run.ID, "logical_date", run.LogicalDate.Format(time.DateOnly))
	if err := r.store.Save(ctx, run); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	log.Info(ctx, "run started")

	var runErr error
	for _, t := range wf.Tasks {
		if err := r.runTask(ctx, run, t, log); err != nil {
			runErr = fmt.Errorf("%w: task %s: %w", common.ErrJobFailed, t.ID, err)
			r.skipDownstream(ctx, run, wf, t.ID, log)
			break
		}
	}

	ended := r.now()
	run.EndedAt = &ended
	run.State = models.RunSuccess
	if runErr != nil {
		run.State = models.RunFailed
	}
	r.save(ctx, run, log)

	if runErr != nil {
		log.Error(ctx, "run failed", "error", runErr)
		return run, runErr
	}
	log.Info(ctx, "run succeeded", "duration", ended.Sub(run.StartedAt))
	return run, nil
}

func (r *Runner) runTask(ctx context.Context, run *models.Run, t *graph.Task, log logging.Logger) error {
	ti := run.Task(t.ID)
	log = log.With("task_id", t.ID, "job_id", t.JobID)

	delay := t.RetryDelay
	if delay <= 0 {
		delay = time.Nanosecond
	}
	backoff := retry.WithMaxRetries(uint64(t.Retries), retry.NewConstant(delay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ti.TryNumber++
		started := r.now()
		ti.State = models.TaskRunning
		ti.StartedAt = &started
		ti.EndedAt = nil
		ti.Error = ""
		r.save(ctx, run, log)
		log.Info(ctx, "task started", "try_number", ti.TryNumber)

		remote, err := r.trigger.Trigger(ctx, t)
		if remote.RunID != 0 {
			ti.RemoteRunID = remote.RunID
			ti.RunPageURL = remote.PageURL
		}
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", ctx.Err(), err)
		}
		if ti.TryNumber > t.Retries {
			return err
		}

		ti.State = models.TaskUpForRetry
		ti.Error = err.Error()
		r.save(ctx, run, log)
		log.Warn(ctx, "task failed, retrying", "try_number", ti.TryNumber, "retry_delay", t.RetryDelay, "error", err)
		return retry.RetryableError(err)
	})

	ended := r.now()
	ti.EndedAt = &ended
	if err != nil {
		ti.State = models.TaskFailed
		ti.Error = err.Error()
		r.save(ctx, run, log)
		log.Error(ctx, "task failed", "try_number", ti.TryNumber, "error", err)
		return err
	}

	ti.State = models.TaskSuccess
	r.save(ctx, run, log)
	log.Info(ctx, "task succeeded", "try_number", ti.TryNumber, "remote_run_id", ti.RemoteRunID)
	return nil
}

func (r *Runner) skipDownstream(ctx context.Context, run *models.Run, wf *graph.Workflow, failed string, log logging.Logger) {
	for _, id := range wf.Downstream(failed) {
		ti := run.Task(id)
		ti.State = models.TaskUpstreamFailed
		log.Warn(ctx, "task skipped", "task_id", id, "upstream", failed)
	}
}

// save logs store failures instead of aborting the run.
func (r *Runner) save(ctx context.Context, run *models.Run, log logging.Logger) {
	if err := r.store.Save(context.WithoutCancel(ctx), run); err != nil {
		log.Error(ctx, "failed to record run state", "error", err)
	}
}

// IsJobFailure reports whether err came from a failed run rather than a
// configuration or storage problem.
func IsJobFailure(err error) bool {
	return errors.Is(err, common.ErrJobFailed)
}
