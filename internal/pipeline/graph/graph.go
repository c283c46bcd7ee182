// Package graph declares workflows: a strictly linear chain of tasks, each
// of which triggers one pre-existing remote job, plus the schedule and
// retry policy the scheduler applies to them.
package graph

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
)

// DefaultArgs are copied into every task built with NewTask.
type DefaultArgs struct {
	Owner          string
	DependsOnPast  bool
	EmailOnFailure bool
	EmailOnRetry   bool
	Retries        int
	RetryDelay     time.Duration
}

// Task triggers the remote job JobID through the connection ConnID.
type Task struct {
	ID             string
	JobID          int64
	ConnID         string
	Retries        int
	RetryDelay     time.Duration
	EmailOnFailure bool
	EmailOnRetry   bool

	// Upstream is the task that must succeed first; empty for the head.
	Upstream string
}

// NewTask builds a task carrying the retry and notification settings of args.
func NewTask(id string, jobID int64, connID string, args DefaultArgs) *Task {
	return &Task{
		ID:             id,
		JobID:          jobID,
		ConnID:         connID,
		Retries:        args.Retries,
		RetryDelay:     args.RetryDelay,
		EmailOnFailure: args.EmailOnFailure,
		EmailOnRetry:   args.EmailOnRetry,
	}
}

type Workflow struct {
	ID          string
	Description string
	Schedule    string
	StartDate   time.Time
	Catchup     bool
	DefaultArgs DefaultArgs
	Tasks       []*Task
}

// Chain appends tasks in order, each gated on the one before it (the last
// task already in the workflow gates the first new one).
func (w *Workflow) Chain(tasks ...*Task) *Workflow {
	for _, t := range tasks {
		if n := len(w.Tasks); n > 0 {
			t.Upstream = w.Tasks[n-1].ID
		} else {
			t.Upstream = ""
		}
		w.Tasks = append(w.Tasks, t)
	}
	return w
}

// Downstream returns the ids of every task after id, in execution order.
func (w *Workflow) Downstream(id string) []string {
	var out []string
	found := false
	for _, t := range w.Tasks {
		if found {
			out = append(out, t.ID)
		}
		if t.ID == id {
			found = true
		}
	}
	return out
}

// Validate checks the invariants the runner relies on. Every violation
// wraps common.ErrInvalidWorkflow.
func (w *Workflow) Validate() error {
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("%w: empty workflow id", common.ErrInvalidWorkflow)
	}
	if strings.TrimSpace(w.Schedule) == "" {
		return fmt.Errorf("%w: %s: empty schedule", common.ErrInvalidWorkflow, w.ID)
	}
	if w.StartDate.IsZero() {
		return fmt.Errorf("%w: %s: start date not set", common.ErrInvalidWorkflow, w.ID)
	}
	if len(w.Tasks) == 0 {
		return fmt.Errorf("%w: %s: no tasks", common.ErrInvalidWorkflow, w.ID)
	}

	seen := make(map[string]struct{}, len(w.Tasks))
	for i, t := range w.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			return fmt.Errorf("%w: task %d has no id", common.ErrInvalidWorkflow, i)
		}
		if _, dup := seen[t.ID]; dup {
			return fmt.Errorf("%w: duplicate task id %q", common.ErrInvalidWorkflow, t.ID)
		}
		seen[t.ID] = struct{}{}

		if t.JobID <= 0 {
			return fmt.Errorf("%w: task %q: job id must be positive, got %d", common.ErrInvalidWorkflow, t.ID, t.JobID)
		}
		if strings.TrimSpace(t.ConnID) == "" {
			return fmt.Errorf("%w: task %q: no connection", common.ErrInvalidWorkflow, t.ID)
		}
		if t.Retries < 0 || t.RetryDelay < 0 {
			return fmt.Errorf("%w: task %q: negative retry policy", common.ErrInvalidWorkflow, t.ID)
		}

		want := ""
		if i > 0 {
			want = w.Tasks[i-1].ID
		}
		if t.Upstream != want {
			return fmt.Errorf("%w: task %q must follow %q, declared upstream %q", common.ErrInvalidWorkflow, t.ID, want, t.Upstream)
		}
	}
	return nil
}
