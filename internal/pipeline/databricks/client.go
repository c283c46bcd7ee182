// Package databricks triggers existing Databricks jobs through the Jobs API
// and waits for them to finish.
package databricks

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sdk "github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/apierr"
	"github.com/databricks/databricks-sdk-go/service/jobs"
)

// Life-cycle states after which a run will not change any more.
const (
	LifeCycleTerminated    = string(jobs.RunLifeCycleStateTerminated)
	LifeCycleSkipped       = string(jobs.RunLifeCycleStateSkipped)
	LifeCycleInternalError = string(jobs.RunLifeCycleStateInternalError)

	ResultSuccess = string(jobs.RunResultStateSuccess)
)

type RunState struct {
	LifeCycleState string
	ResultState    string
	StateMessage   string
}

// Terminal reports whether the run has finished.
func (s RunState) Terminal() bool {
	switch s.LifeCycleState {
	case LifeCycleTerminated, LifeCycleSkipped, LifeCycleInternalError:
		return true
	}
	return false
}

// Succeeded reports whether the run finished with result SUCCESS.
func (s RunState) Succeeded() bool {
	return s.Terminal() && s.ResultState == ResultSuccess
}

type Run struct {
	RunID      int64
	JobID      int64
	RunPageURL string
	State      RunState
}

// JobsAPI is the part of the Jobs service a Trigger needs.
type JobsAPI interface {
	RunNow(ctx context.Context, jobID int64) (int64, error)
	GetRun(ctx context.Context, runID int64) (*Run, error)
	CancelRun(ctx context.Context, runID int64) error
}

// Client calls one workspace with a personal access token.
type Client struct {
	ws *sdk.WorkspaceClient
}

// NewClient builds a client for host. A host without scheme gets https://.
// Nothing is sent until the first call.
func NewClient(host, token string) (*Client, error) {
	ws, err := sdk.NewWorkspaceClient(&sdk.Config{
		Host:     host,
		Token:    token,
		AuthType: "pat",
	})
	if err != nil {
		return nil, fmt.Errorf("databricks client for %s: %w", host, err)
	}
	return &Client{ws: ws}, nil
}

// RunNow starts a run of jobID and returns its run id.
func (c *Client) RunNow(ctx context.Context, jobID int64) (int64, error) {
	wait, err := c.ws.Jobs.RunNow(ctx, jobs.RunNow{JobId: jobID})
	if err != nil {
		return 0, fmt.Errorf("run-now job %d: %w", jobID, err)
	}
	return wait.RunId, nil
}

func (c *Client) GetRun(ctx context.Context, runID int64) (*Run, error) {
	run, err := c.ws.Jobs.GetRun(ctx, jobs.GetRunRequest{RunId: runID})
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", runID, err)
	}

	out := &Run{RunID: run.RunId, JobID: run.JobId, RunPageURL: run.RunPageUrl}
	if run.State != nil {
		out.State = RunState{
			LifeCycleState: string(run.State.LifeCycleState),
			ResultState:    string(run.State.ResultState),
			StateMessage:   run.State.StateMessage,
		}
	}
	return out, nil
}

// CancelRun asks the workspace to stop runID. It does not wait.
func (c *Client) CancelRun(ctx context.Context, runID int64) error {
	if _, err := c.ws.Jobs.CancelRun(ctx, jobs.CancelRun{RunId: runID}); err != nil {
		return fmt.Errorf("cancel run %d: %w", runID, err)
	}
	return nil
}

// Transient reports whether a failed call may succeed when repeated:
// throttling, server-side errors and transport failures. Client errors and
// context cancellation are final.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *apierr.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}
