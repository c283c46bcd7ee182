// Package runstore records workflow runs and their task instances so the
// scheduler can tell which intervals have already been executed.
package runstore

import (
	"context"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/pipeline/models"
)

// Repository persists runs. Save is an upsert keyed by run id and is called
// on every state change.
type Repository interface {
	Save(ctx context.Context, run *models.Run) error
	// Last returns the run with the latest logical date for the workflow,
	// or common.ErrNotFound.
	Last(ctx context.Context, workflowID string) (*models.Run, error)
	// Get returns the most recently started run for exactly that logical
	// date, or common.ErrNotFound.
	Get(ctx context.Context, workflowID string, logicalDate time.Time) (*models.Run, error)
	// List returns up to limit runs, newest logical date first. limit <= 0
	// means no limit.
	List(ctx context.Context, workflowID string, limit int) ([]*models.Run, error)
}
