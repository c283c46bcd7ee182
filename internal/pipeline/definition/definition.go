// Package definition declares the medallion workflow: raw-to-bronze
// ingestion, AI enrichment into silver, then gold city statistics, each a
// pre-existing Databricks job triggered once per day.
package definition

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/graph"
)

const (
	WorkflowID  = "yelp_intelligent_pipeline"
	Description = "Medallion pipeline with AI enrichment on Databricks"
	Schedule    = "@daily"

	DefaultConnID = "databricks_default"
	DefaultOwner  = "data-engineering"

	TaskIngestion  = "ingestion_raw_to_bronze"
	TaskEnrichment = "silver_enrichment_ia"
	TaskGold       = "gold_city_stats"
)

// StartDate is the first logical date of the workflow.
var StartDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// DefaultJobIDs are placeholders until real job ids are configured.
var DefaultJobIDs = map[string]int64{
	TaskIngestion:  12345,
	TaskEnrichment: 67890,
	TaskGold:       11223,
}

// TaskIDs returns the task ids in execution order.
func TaskIDs() []string {
	return []string{TaskIngestion, TaskEnrichment, TaskGold}
}

// DefaultArgs returns the retry and notification policy shared by every task.
func DefaultArgs(owner string) graph.DefaultArgs {
	return graph.DefaultArgs{
		Owner:          owner,
		DependsOnPast:  false,
		EmailOnFailure: false,
		EmailOnRetry:   false,
		Retries:        1,
		RetryDelay:     5 * time.Minute,
	}
}

type Params struct {
	Owner  string
	ConnID string
	// JobIDs maps task id to remote job id. Every task must be present.
	JobIDs map[string]int64
	// RetryDelay overrides the default five minutes when positive.
	RetryDelay time.Duration
}

// Build resolves job ids and returns the validated workflow.
func Build(p Params) (*graph.Workflow, error) {
	if p.Owner == "" {
		p.Owner = DefaultOwner
	}
	if p.ConnID == "" {
		p.ConnID = DefaultConnID
	}

	args := DefaultArgs(p.Owner)
	if p.RetryDelay > 0 {
		args.RetryDelay = p.RetryDelay
	}
	wf := &graph.Workflow{
		ID:          WorkflowID,
		Description: Description,
		Schedule:    Schedule,
		StartDate:   StartDate,
		Catchup:     false,
		DefaultArgs: args,
	}

	for _, id := range TaskIDs() {
		jobID, ok := p.JobIDs[id]
		if !ok {
			return nil, fmt.Errorf("%w: no job id configured for task %q", common.ErrUnknownJob, id)
		}
		wf.Chain(graph.NewTask(id, jobID, p.ConnID, args))
	}

	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return wf, nil
}
