package databricks

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/databricks/databricks-sdk-go/apierr"
)

var (
	statePending = RunState{LifeCycleState: "PENDING"}
	stateRunning = RunState{LifeCycleState: "RUNNING"}
	stateSuccess = RunState{LifeCycleState: LifeCycleTerminated, ResultState: ResultSuccess}
	stateFailed  = RunState{LifeCycleState: LifeCycleTerminated, ResultState: "FAILED", StateMessage: "Task failed with error"}
)

func unavailable() error {
	return &apierr.APIError{StatusCode: http.StatusServiceUnavailable, ErrorCode: "TEMPORARILY_UNAVAILABLE", Message: "try again later"}
}

// fakeJobs is an in-memory JobsAPI. Each job walks through its configured
// states, one per successful GetRun. getErrs are returned, in order, by the
// next GetRun calls before any state is.
type fakeJobs struct {
	mu        sync.Mutex
	nextRun   int64
	states    map[int64][]RunState
	runJob    map[int64]int64
	polls     map[int64]int
	getErrs   []error
	runNows   []int64
	cancelled []int64
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{
		nextRun: 100,
		states:  make(map[int64][]RunState),
		runJob:  make(map[int64]int64),
		polls:   make(map[int64]int),
	}
}

func (f *fakeJobs) setStates(jobID int64, states ...RunState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[jobID] = states
}

func (f *fakeJobs) failGets(errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getErrs = append(f.getErrs, errs...)
}

func (f *fakeJobs) RunNow(ctx context.Context, jobID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runNows = append(f.runNows, jobID)
	if _, ok := f.states[jobID]; !ok {
		return 0, &apierr.APIError{StatusCode: http.StatusBadRequest, ErrorCode: "INVALID_PARAMETER_VALUE", Message: fmt.Sprintf("Job %d does not exist.", jobID)}
	}
	f.nextRun++
	f.runJob[f.nextRun] = jobID
	return f.nextRun, nil
}

func (f *fakeJobs) GetRun(ctx context.Context, runID int64) (*Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.getErrs) > 0 {
		err := f.getErrs[0]
		f.getErrs = f.getErrs[1:]
		return nil, fmt.Errorf("get run %d: %w", runID, err)
	}

	jobID := f.runJob[runID]
	states := f.states[jobID]
	i := f.polls[runID]
	if i >= len(states) {
		i = len(states) - 1
	}
	f.polls[runID]++
	return &Run{
		RunID:      runID,
		JobID:      jobID,
		RunPageURL: fmt.Sprintf("https://workspace/job/%d/run/%d", jobID, runID),
		State:      states[i],
	}, nil
}

func (f *fakeJobs) CancelRun(ctx context.Context, runID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, runID)
	return nil
}

func (f *fakeJobs) runNowCalls() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.runNows...)
}

func (f *fakeJobs) cancelledRuns() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.cancelled...)
}

func (f *fakeJobs) pollCount(runID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls[runID]
}

// fakeWorkspace serves the Jobs endpoints the SDK client calls, backed by
// a fakeJobs. Only the bearer token is checked.
type fakeWorkspace struct {
	*fakeJobs
	token string
}

func newFakeWorkspace(t *testing.T, token string) (*fakeWorkspace, *httptest.Server) {
	f := &fakeWorkspace{fakeJobs: newFakeJobs(), token: token}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	return f, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := map[string]string{"message": err.Error()}
	if apiErr, ok := err.(*apierr.APIError); ok {
		status = apiErr.StatusCode
		body = map[string]string{"error_code": apiErr.ErrorCode, "message": apiErr.Message}
	}
	writeJSON(w, status, body)
}

func (f *fakeWorkspace) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+f.token {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error_code": "PERMISSION_DENIED", "message": "Invalid access token."})
		return
	}

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/jobs/run-now"):
		var in struct {
			JobID int64 `json:"job_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		runID, err := f.RunNow(r.Context(), in.JobID)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int64{"run_id": runID, "number_in_job": runID})

	case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/jobs/runs/get"):
		runID, _ := strconv.ParseInt(r.URL.Query().Get("run_id"), 10, 64)
		f.mu.Lock()
		_, known := f.runJob[runID]
		f.mu.Unlock()
		if !known {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error_code": "RESOURCE_DOES_NOT_EXIST", "message": "Run does not exist."})
			return
		}
		run, _ := f.GetRun(r.Context(), runID)
		writeJSON(w, http.StatusOK, map[string]any{
			"run_id":       run.RunID,
			"job_id":       run.JobID,
			"run_page_url": run.RunPageURL,
			"state": map[string]string{
				"life_cycle_state": run.State.LifeCycleState,
				"result_state":     run.State.ResultState,
				"state_message":    run.State.StateMessage,
			},
		})

	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/jobs/runs/cancel"):
		var in struct {
			RunID int64 `json:"run_id"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		_ = f.CancelRun(r.Context(), in.RunID)
		writeJSON(w, http.StatusOK, map[string]any{})

	default:
		http.NotFound(w, r)
	}
}
