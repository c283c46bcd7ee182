package graph

import (
	"io"

	"gopkg.in/yaml.v2"
)

const operatorRunNow = "databricks_run_now"

type document struct {
	WorkflowID  string         `yaml:"workflow_id"`
	Description string         `yaml:"description"`
	Schedule    string         `yaml:"schedule"`
	StartDate   string         `yaml:"start_date"`
	Catchup     bool           `yaml:"catchup"`
	DefaultArgs defaultArgsDoc `yaml:"default_args"`
	Tasks       []taskDocument `yaml:"tasks"`
	Edges       []edgeDocument `yaml:"edges,omitempty"`
}

type defaultArgsDoc struct {
	Owner          string `yaml:"owner"`
	DependsOnPast  bool   `yaml:"depends_on_past"`
	EmailOnFailure bool   `yaml:"email_on_failure"`
	EmailOnRetry   bool   `yaml:"email_on_retry"`
	Retries        int    `yaml:"retries"`
	RetryDelay     string `yaml:"retry_delay"`
}

type taskDocument struct {
	TaskID         string `yaml:"task_id"`
	Operator       string `yaml:"operator"`
	ConnID         string `yaml:"conn_id"`
	JobID          int64  `yaml:"job_id"`
	Retries        int    `yaml:"retries"`
	RetryDelay     string `yaml:"retry_delay"`
	EmailOnFailure bool   `yaml:"email_on_failure"`
	EmailOnRetry   bool   `yaml:"email_on_retry"`
}

type edgeDocument struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Render writes the registration document for w as YAML.
func (w *Workflow) Render(out io.Writer) error {
	doc := document{
		WorkflowID:  w.ID,
		Description: w.Description,
		Schedule:    w.Schedule,
		StartDate:   w.StartDate.UTC().Format("2006-01-02"),
		Catchup:     w.Catchup,
		DefaultArgs: defaultArgsDoc{
			Owner:          w.DefaultArgs.Owner,
			DependsOnPast:  w.DefaultArgs.DependsOnPast,
			EmailOnFailure: w.DefaultArgs.EmailOnFailure,
			EmailOnRetry:   w.DefaultArgs.EmailOnRetry,
			Retries:        w.DefaultArgs.Retries,
			RetryDelay:     w.DefaultArgs.RetryDelay.String(),
		},
	}

	for _, t := range w.Tasks {
		doc.Tasks = append(doc.Tasks, taskDocument{
			TaskID:         t.ID,
			Operator:       operatorRunNow,
			ConnID:         t.ConnID,
			JobID:          t.JobID,
			Retries:        t.Retries,
			RetryDelay:     t.RetryDelay.String(),
			EmailOnFailure: t.EmailOnFailure,
			EmailOnRetry:   t.EmailOnRetry,
		})
		if t.Upstream != "" {
			doc.Edges = append(doc.Edges, edgeDocument{From: t.Upstream, To: t.ID})
		}
	}

	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	_, err = out.Write(b)
	return err
}
