package definition

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/lakehouse/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Defaults(t *testing.T) {
	wf, err := Build(Params{JobIDs: DefaultJobIDs})
	require.NoError(t, err)

	assert.Equal(t, WorkflowID, wf.ID)
	assert.Equal(t, "@daily", wf.Schedule)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), wf.StartDate)
	assert.False(t, wf.Catchup)
	assert.Equal(t, DefaultOwner, wf.DefaultArgs.Owner)

	require.Len(t, wf.Tasks, 3)
	wantJobs := []int64{12345, 67890, 11223}
	for i, task := range wf.Tasks {
		assert.Equal(t, TaskIDs()[i], task.ID)
		assert.Equal(t, wantJobs[i], task.JobID)
		assert.Equal(t, DefaultConnID, task.ConnID)
		assert.Equal(t, 1, task.Retries)
		assert.Equal(t, 5*time.Minute, task.RetryDelay)
		assert.False(t, task.EmailOnFailure)
		assert.False(t, task.EmailOnRetry)
	}
	assert.Equal(t, TaskIngestion, wf.Tasks[1].Upstream)
	assert.Equal(t, TaskEnrichment, wf.Tasks[2].Upstream)
}

func TestBuild_CustomJobsAndConnection(t *testing.T) {
	wf, err := Build(Params{
		Owner:  "alice",
		ConnID: "other",
		JobIDs: map[string]int64{TaskIngestion: 1, TaskEnrichment: 2, TaskGold: 3},
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", wf.DefaultArgs.Owner)
	assert.Equal(t, "other", wf.Tasks[0].ConnID)
	assert.Equal(t, int64(3), wf.Tasks[2].JobID)
}

func TestBuild_RetryDelayOverride(t *testing.T) {
	wf, err := Build(Params{JobIDs: DefaultJobIDs, RetryDelay: time.Second})
	require.NoError(t, err)

	assert.Equal(t, time.Second, wf.DefaultArgs.RetryDelay)
	for _, task := range wf.Tasks {
		assert.Equal(t, time.Second, task.RetryDelay)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		jobs    map[string]int64
		wantErr error
	}{
		{name: "missing mapping", jobs: map[string]int64{TaskIngestion: 1, TaskGold: 3}, wantErr: common.ErrUnknownJob},
		{name: "nil map", jobs: nil, wantErr: common.ErrUnknownJob},
		{name: "non-positive job id", jobs: map[string]int64{TaskIngestion: 1, TaskEnrichment: 0, TaskGold: 3}, wantErr: common.ErrInvalidWorkflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(Params{JobIDs: tt.jobs})
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
