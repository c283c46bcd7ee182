// Package models holds the records written by the pipeline runner: one Run
// per scheduled interval and one TaskInstance per task in that run.
package models

import "time"

type RunState string

const (
	RunRunning RunState = "running"
	RunSuccess RunState = "success"
	RunFailed  RunState = "failed"
)

type TaskState string

const (
	TaskQueued         TaskState = "queued"
	TaskRunning        TaskState = "running"
	TaskUpForRetry     TaskState = "up_for_retry"
	TaskSuccess        TaskState = "success"
	TaskFailed         TaskState = "failed"
	TaskUpstreamFailed TaskState = "upstream_failed"
)

// Finished reports whether the state is final for this run.
func (s TaskState) Finished() bool {
	return s == TaskSuccess || s == TaskFailed || s == TaskUpstreamFailed
}

// TaskInstance is one task's execution inside a Run.
type TaskInstance struct {
	RunID       string
	TaskID      string
	JobID       int64
	State       TaskState
	TryNumber   int
	RemoteRunID int64
	RunPageURL  string
	StartedAt   *time.Time
	EndedAt     *time.Time
	Error       string
}

// Run is one execution of a workflow for a logical date.
type Run struct {
	ID          string
	WorkflowID  string
	LogicalDate time.Time
	State       RunState
	StartedAt   time.Time
	EndedAt     *time.Time
	Tasks       []*TaskInstance
}

// Task returns the instance for taskID, or nil.
func (r *Run) Task(taskID string) *TaskInstance {
	for _, ti := range r.Tasks {
		if ti.TaskID == taskID {
			return ti
		}
	}
	return nil
}

// Clone returns a deep copy, so stores never share memory with the runner.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	c := *r
	c.EndedAt = cloneTime(r.EndedAt)
	c.Tasks = make([]*TaskInstance, len(r.Tasks))
	for i, ti := range r.Tasks {
		t := *ti
		t.StartedAt = cloneTime(ti.StartedAt)
		t.EndedAt = cloneTime(ti.EndedAt)
		c.Tasks[i] = &t
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// RemoteRun identifies the remote job run a task attempt started.
type RemoteRun struct {
	RunID   int64
	PageURL string
}
