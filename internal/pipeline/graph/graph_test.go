package graph

import (
	"bytes"
	"testing"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

var testArgs = DefaultArgs{Owner: "data", Retries: 1, RetryDelay: 5 * time.Minute}

func newTestWorkflow() *Workflow {
	w := &Workflow{
		ID:          "wf",
		Description: "test",
		Schedule:    "@daily",
		StartDate:   time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		DefaultArgs: testArgs,
	}
	return w.Chain(
		NewTask("a", 1, "conn", testArgs),
		NewTask("b", 2, "conn", testArgs),
		NewTask("c", 3, "conn", testArgs),
	)
}

func TestNewTask_AppliesDefaults(t *testing.T) {
	args := DefaultArgs{Retries: 3, RetryDelay: time.Second, EmailOnFailure: true}
	task := NewTask("x", 7, "conn", args)

	assert.Equal(t, "x", task.ID)
	assert.Equal(t, int64(7), task.JobID)
	assert.Equal(t, 3, task.Retries)
	assert.Equal(t, time.Second, task.RetryDelay)
	assert.True(t, task.EmailOnFailure)
	assert.False(t, task.EmailOnRetry)
	assert.Empty(t, task.Upstream)
}

func TestWorkflow_Chain(t *testing.T) {
	w := newTestWorkflow()

	require.Len(t, w.Tasks, 3)
	assert.Empty(t, w.Tasks[0].Upstream)
	assert.Equal(t, "a", w.Tasks[1].Upstream)
	assert.Equal(t, "b", w.Tasks[2].Upstream)

	w.Chain(NewTask("d", 4, "conn", testArgs))
	assert.Equal(t, "c", w.Tasks[3].Upstream)
	require.NoError(t, w.Validate())
}

func TestWorkflow_Downstream(t *testing.T) {
	w := newTestWorkflow()

	assert.Equal(t, []string{"b", "c"}, w.Downstream("a"))
	assert.Equal(t, []string{"c"}, w.Downstream("b"))
	assert.Empty(t, w.Downstream("c"))
	assert.Empty(t, w.Downstream("missing"))
}

func TestWorkflow_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *Workflow)
	}{
		{name: "empty id", mutate: func(w *Workflow) { w.ID = " " }},
		{name: "empty schedule", mutate: func(w *Workflow) { w.Schedule = "" }},
		{name: "no start date", mutate: func(w *Workflow) { w.StartDate = time.Time{} }},
		{name: "no tasks", mutate: func(w *Workflow) { w.Tasks = nil }},
		{name: "empty task id", mutate: func(w *Workflow) { w.Tasks[0].ID = "" }},
		{name: "duplicate task id", mutate: func(w *Workflow) { w.Tasks[2].ID = "a" }},
		{name: "zero job id", mutate: func(w *Workflow) { w.Tasks[1].JobID = 0 }},
		{name: "negative job id", mutate: func(w *Workflow) { w.Tasks[1].JobID = -5 }},
		{name: "no connection", mutate: func(w *Workflow) { w.Tasks[2].ConnID = "" }},
		{name: "negative retries", mutate: func(w *Workflow) { w.Tasks[0].Retries = -1 }},
		{name: "branch", mutate: func(w *Workflow) { w.Tasks[2].Upstream = "a" }},
		{name: "head with upstream", mutate: func(w *Workflow) { w.Tasks[0].Upstream = "c" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWorkflow()
			tt.mutate(w)

			err := w.Validate()
			assert.ErrorIs(t, err, common.ErrInvalidWorkflow)
		})
	}
}

func TestWorkflow_Render(t *testing.T) {
	w := newTestWorkflow()

	var buf bytes.Buffer
	require.NoError(t, w.Render(&buf))

	var doc document
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "wf", doc.WorkflowID)
	assert.Equal(t, "@daily", doc.Schedule)
	assert.Equal(t, "2025-01-01", doc.StartDate)
	assert.False(t, doc.Catchup)
	assert.Equal(t, "5m0s", doc.DefaultArgs.RetryDelay)
	assert.Equal(t, 1, doc.DefaultArgs.Retries)

	require.Len(t, doc.Tasks, 3)
	assert.Equal(t, operatorRunNow, doc.Tasks[0].Operator)
	assert.Equal(t, int64(3), doc.Tasks[2].JobID)
	assert.Equal(t, []edgeDocument{{From: "a", To: "b"}, {From: "b", To: "c"}}, doc.Edges)
}
