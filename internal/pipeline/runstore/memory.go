package runstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/dmitrijs2005/lakehouse/internal/pipeline/models"
)

// MemoryRepository keeps runs in process memory. Runs are cloned on the way
// in and out.
type MemoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*models.Run
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{runs: make(map[string]*models.Run)}
}

func (r *MemoryRepository) Save(ctx context.Context, run *models.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.ID] = run.Clone()
	return nil
}

func (r *MemoryRepository) Last(ctx context.Context, workflowID string) (*models.Run, error) {
	runs, _ := r.List(ctx, workflowID, 1)
	if len(runs) == 0 {
		return nil, common.ErrNotFound
	}
	return runs[0], nil
}

func (r *MemoryRepository) Get(ctx context.Context, workflowID string, logicalDate time.Time) (*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *models.Run
	for _, run := range r.runs {
		if run.WorkflowID != workflowID || !run.LogicalDate.Equal(logicalDate) {
			continue
		}
		if found == nil || run.StartedAt.After(found.StartedAt) {
			found = run
		}
	}
	if found == nil {
		return nil, common.ErrNotFound
	}
	return found.Clone(), nil
}

func (r *MemoryRepository) List(ctx context.Context, workflowID string, limit int) ([]*models.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*models.Run
	for _, run := range r.runs {
		if run.WorkflowID == workflowID {
			out = append(out, run.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LogicalDate.Equal(out[j].LogicalDate) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].LogicalDate.After(out[j].LogicalDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
