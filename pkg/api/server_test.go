package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridgeline-io/ridgeline/pkg/cluster"
	"github.com/ridgeline-io/ridgeline/pkg/config"
	"github.com/ridgeline-io/ridgeline/pkg/events"
	"github.com/ridgeline-io/ridgeline/pkg/fleet"
	"github.com/ridgeline-io/ridgeline/pkg/types"
	"github.com/ridgeline-io/ridgeline/pkg/update"
)

// fakeService scripts every Service method
type fakeService struct {
	createInfo *types.ClusterInfo
	createErr  error

	updateReport *update.Report
	updateErr    error

	deleteErr error
	startErr  error
	stopErr   error

	statusInfo *types.ClusterInfo
	statusErr  error

	listInfos []*types.ClusterInfo

	configDoc []byte
	configErr error

	taskID    string
	exportErr error

	lastName     string
	lastKeepLogs bool
	lastOpts     cluster.UpdateOptions
}

func (f *fakeService) Create(_ context.Context, name string, _ []byte, _ cluster.ValidateOptions) (*types.ClusterInfo, error) {
	f.lastName = name
	return f.createInfo, f.createErr
}

func (f *fakeService) Update(_ context.Context, name string, _ []byte, opts cluster.UpdateOptions) (*update.Report, error) {
	f.lastName = name
	f.lastOpts = opts
	return f.updateReport, f.updateErr
}

func (f *fakeService) Delete(_ context.Context, name string, keepLogs bool) error {
	f.lastName = name
	f.lastKeepLogs = keepLogs
	return f.deleteErr
}

func (f *fakeService) Start(_ context.Context, name string) error {
	f.lastName = name
	return f.startErr
}

func (f *fakeService) Stop(_ context.Context, name string) error {
	f.lastName = name
	return f.stopErr
}

func (f *fakeService) Status(_ context.Context, name string) (*types.ClusterInfo, error) {
	f.lastName = name
	return f.statusInfo, f.statusErr
}

func (f *fakeService) List(context.Context) ([]*types.ClusterInfo, error) {
	return f.listInfos, nil
}

func (f *fakeService) DescribeConfig(_ context.Context, name string) ([]byte, error) {
	f.lastName = name
	return f.configDoc, f.configErr
}

func (f *fakeService) ExportLogs(_ context.Context, name, _, _ string) (string, error) {
	f.lastName = name
	return f.taskID, f.exportErr
}

func do(t *testing.T, svc Service, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&reader).Encode(body))
	}
	req := httptest.NewRequest(method, path, &reader)
	rec := httptest.NewRecorder()
	NewServer(svc, nil).Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

// TestHandleHealth tests the liveness endpoint
func TestHandleHealth(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
}

// TestHandleReady tests the readiness endpoint
func TestHandleReady(t *testing.T) {
	rec := do(t, &fakeService{}, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)

	req := httptest.NewRequest(http.MethodGet, "/ready", nil)
	bare := httptest.NewRecorder()
	NewServer(nil, nil).Handler().ServeHTTP(bare, req)
	require.Equal(t, http.StatusServiceUnavailable, bare.Code)
}

// TestHandleEvents tests lifecycle event listing
func TestHandleEvents(t *testing.T) {
	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()
	recorder := events.NewRecorder(broker, 0)
	defer recorder.Stop()

	recorder.Record(&events.Event{ID: "1", Type: events.EventClusterCreated, Cluster: "hpc-1"})
	recorder.Record(&events.Event{ID: "2", Type: events.EventFleetStopped, Cluster: "hpc-2"})

	server := NewServer(&fakeService{}, recorder)

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := get("/v1/events")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed []*events.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "2", listed[0].ID, "newest first")

	rec = get("/v1/events?cluster=hpc-1")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, "1", listed[0].ID)

	rec = get("/v1/events?limit=nope")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, &fakeService{}, http.MethodGet, "/v1/events", nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code, "no recorder wired")
}

// TestHandleCreate tests cluster creation request handling
func TestHandleCreate(t *testing.T) {
	t.Run("accepted", func(t *testing.T) {
		svc := &fakeService{createInfo: &types.ClusterInfo{Name: "hpc-1", Status: types.ClusterStatusCreating}}
		rec := do(t, svc, http.MethodPost, "/v1/clusters", map[string]string{
			"name":   "hpc-1",
			"config": "Os: alinux2",
		})

		require.Equal(t, http.StatusAccepted, rec.Code)
		assert.Equal(t, "hpc-1", svc.lastName)

		var info types.ClusterInfo
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
		assert.Equal(t, types.ClusterStatusCreating, info.Status)
	})

	t.Run("missing name", func(t *testing.T) {
		rec := do(t, &fakeService{}, http.MethodPost, "/v1/clusters", map[string]string{"config": "Os: alinux2"})
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "BadRequest", decodeError(t, rec).Kind)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/clusters", bytes.NewBufferString("{nope"))
		rec := httptest.NewRecorder()
		NewServer(&fakeService{}, nil).Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("bad failure level", func(t *testing.T) {
		rec := do(t, &fakeService{}, http.MethodPost, "/v1/clusters", map[string]string{
			"name": "hpc-1", "config": "x", "failureLevel": "fatal",
		})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestHandleUpdateDenied tests that a denied update returns 409 with the report
func TestHandleUpdateDenied(t *testing.T) {
	report := deniedReport(t)
	svc := &fakeService{
		updateReport: report,
		updateErr:    &cluster.UpdateError{Cluster: "hpc-1", Report: report},
	}

	rec := do(t, svc, http.MethodPut, "/v1/clusters/hpc-1", map[string]string{"config": "Os: alinux2"})
	require.Equal(t, http.StatusConflict, rec.Code)

	var resp struct {
		Error  errorBody     `json:"error"`
		Report []verdictView `json:"report"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ClusterUpdate", resp.Error.Kind)
	require.Len(t, resp.Report, 1)
	assert.Equal(t, "ACTION_NEEDED", resp.Report[0].Result)
	assert.NotEmpty(t, resp.Report[0].Path)
}

// TestHandleUpdateAccepted tests the allowed path, including option plumbing
func TestHandleUpdateAccepted(t *testing.T) {
	svc := &fakeService{updateReport: &update.Report{}}
	rec := do(t, svc, http.MethodPut, "/v1/clusters/hpc-1", map[string]interface{}{
		"config": "Os: alinux2",
		"force":  true,
	})

	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "hpc-1", svc.lastName)
	assert.True(t, svc.lastOpts.Force)
}

// TestErrorClassification tests the kind-to-status mapping end to end
func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{
			name:       "not found",
			err:        &cluster.NotFoundError{Cluster: "ghost"},
			wantStatus: http.StatusNotFound,
			wantKind:   "ClusterNotFound",
		},
		{
			name:       "concurrent update",
			err:        &fleet.ConcurrentUpdateError{Cluster: "hpc-1", Expected: fleet.StatusRunning, Actual: fleet.StatusStopping},
			wantStatus: http.StatusConflict,
			wantKind:   "ConcurrentUpdate",
		},
		{
			name:       "invalid value",
			err:        &config.InvalidValueError{Param: "MaxCount", Value: "lots"},
			wantStatus: http.StatusBadRequest,
			wantKind:   "InvalidValue",
		},
		{
			name:       "action failure",
			err:        &cluster.ActionError{Cluster: "hpc-1", Action: "start", Err: errors.New("boom")},
			wantStatus: http.StatusInternalServerError,
			wantKind:   "ClusterAction",
		},
		{
			name:       "plain error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantKind:   "Internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{startErr: tt.err}
			rec := do(t, svc, http.MethodPost, "/v1/clusters/hpc-1/fleet/start", nil)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantKind, decodeError(t, rec).Kind)
		})
	}
}

// TestHandleDelete tests deletion including the keepLogs flag
func TestHandleDelete(t *testing.T) {
	svc := &fakeService{}
	rec := do(t, svc, http.MethodDelete, "/v1/clusters/hpc-1?keepLogs=true", nil)

	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "hpc-1", svc.lastName)
	assert.True(t, svc.lastKeepLogs)
}

// TestHandleList tests the inventory endpoint
func TestHandleList(t *testing.T) {
	svc := &fakeService{listInfos: []*types.ClusterInfo{
		{Name: "a", Status: types.ClusterStatusActive},
		{Name: "b", Status: types.ClusterStatusCreating},
	}}
	rec := do(t, svc, http.MethodGet, "/v1/clusters", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var infos []types.ClusterInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &infos))
	assert.Len(t, infos, 2)
}

// TestHandleConfig tests the deployed-config endpoint content type
func TestHandleConfig(t *testing.T) {
	svc := &fakeService{configDoc: []byte("Os: alinux2\n")}
	rec := do(t, svc, http.MethodGet, "/v1/clusters/hpc-1/config", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))
	assert.Equal(t, "Os: alinux2\n", rec.Body.String())
}

// TestHandleExportLogs tests the export endpoint
func TestHandleExportLogs(t *testing.T) {
	svc := &fakeService{taskID: "task-9"}
	rec := do(t, svc, http.MethodPost, "/v1/clusters/hpc-1/logs/export", map[string]string{"bucket": "b"})

	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp exportLogsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "task-9", resp.TaskID)
}

// deniedReport builds a one-verdict denied report from a real diff
func deniedReport(t *testing.T) *update.Report {
	t.Helper()
	sch := config.ClusterSchema()
	base, err := config.FromDocument(sch, []byte(`
Scheduling:
  Scheduler: slurm
  SlurmQueues:
    - Name: q1
      ComputeResources:
        - Name: cr1
          InstanceType: c5.large
          MaxCount: 10
`))
	require.NoError(t, err)
	target, err := config.FromDocument(sch, []byte(`
Scheduling:
  Scheduler: slurm
  SlurmQueues:
    - Name: q1
      ComputeResources:
        - Name: cr1
          InstanceType: c5.large
          MaxCount: 5
`))
	require.NoError(t, err)

	patch := update.NewPatch(base, target, stubState{})
	return update.NewEngine().Evaluate(context.Background(), patch)
}

// stubState reports a running fleet
type stubState struct{}

func (stubState) Name() string                                           { return "hpc-1" }
func (stubState) FleetStatus(context.Context) (fleet.Status, error)      { return fleet.StatusRunning, nil }
func (stubState) HeadNodeState(context.Context) (types.HeadNodeState, error) {
	return types.HeadNodeRunning, nil
}
func (stubState) RunningCapacity(context.Context) (int, error) { return 4, nil }
