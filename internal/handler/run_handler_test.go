package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"simflow/commons/routes"
	runQueue "simflow/internal/consumer/run_queue/iface"
	discovery "simflow/internal/discovery/iface"
	"simflow/internal/domain"
	"simflow/internal/dto"
	"simflow/internal/handler"
	"simflow/internal/logger"
	"simflow/internal/repository"
	repositoryIface "simflow/internal/repository/iface"
	internalRoutes "simflow/internal/routes"
	"simflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunService struct {
	syncErr   error
	submitErr error
	records   map[string]*domain.RunRecord
	listed    domain.RecordStatus
	lastReq   *domain.RunRequest
}

func (f *fakeRunService) Prepare(req *domain.RunRequest) error { return nil }

func (f *fakeRunService) RunSync(ctx context.Context, req *domain.RunRequest) (*domain.PipelineResult, error) {
	f.lastReq = req
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return &domain.PipelineResult{
		RunID:       req.RunID,
		Status:      domain.RunStatusFailed,
		State:       domain.StateDoneFailed,
		FailedStage: domain.StageWeatherFetch,
		Error:       domain.NewStageError(domain.StageWeatherFetch, "no coverage"),
	}, nil
}

func (f *fakeRunService) Submit(ctx context.Context, req *domain.RunRequest) (*domain.RunRecord, error) {
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	return &domain.RunRecord{RunID: req.RunID, Status: domain.RecordQueued}, nil
}

func (f *fakeRunService) ExecuteQueued(ctx context.Context, req *domain.RunRequest, submittedAt int64) bool {
	return true
}

func (f *fakeRunService) Get(ctx context.Context, runID string) (*domain.RunRecord, error) {
	rec, ok := f.records[runID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return rec, nil
}

func (f *fakeRunService) List(ctx context.Context, status domain.RecordStatus, limit int, nextToken string) (*repositoryIface.RunPage, error) {
	f.listed = status
	if status == "BOGUS" {
		return nil, &domain.ValidationError{Problems: []string{"unknown status"}}
	}
	page := &repositoryIface.RunPage{NextToken: "tok"}
	for _, rec := range f.records {
		page.Runs = append(page.Runs, rec)
	}
	return page, nil
}

var _ service.RunService = (*fakeRunService)(nil)

func newCoordinatorRouter(svc service.RunService) *gin.Engine {
	log := logger.NewNopLogger()
	r := routes.NewRouter(routes.RouterConfig{ServiceName: "coordinator"}, routes.RouteDependencies{Logger: log})
	internalRoutes.InitHealthRoutes(r, handler.NewHealthHandler(log, "coordinator", "0.1.0", discovery.StaticResolver("http://engine:8000")), log)
	internalRoutes.InitRunRoutes(r, handler.NewRunHandler(log, svc), log)
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func errorDetail(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	d, _ := body["detail"].(string)
	return d
}

func TestCoordinatorHealth(t *testing.T) {
	r := newCoordinatorRouter(&fakeRunService{})
	for _, path := range []string{"/health", "/api/v1/health"} {
		w := serve(r, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)
		var resp dto.HealthCheckResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "coordinator", resp.Service)
		assert.Equal(t, "http://engine:8000", resp.EngineBaseURL)
	}
}

func TestRunSync(t *testing.T) {
	svc := &fakeRunService{}
	r := newCoordinatorRouter(svc)

	w := serve(r, http.MethodPost, "/api/v1/pipeline/runs", `{"run_id":"run-1","building":{"building_type":"office"}}`)
	require.Equal(t, http.StatusOK, w.Code, "a failed pipeline is still a 200")

	var res domain.PipelineResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, domain.StateDoneFailed, res.State)
	assert.Equal(t, domain.StageWeatherFetch, res.FailedStage)
	assert.Equal(t, "office", svc.lastReq.Building.BuildingType)

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid", &domain.ValidationError{Problems: []string{"latitude out of range"}}, http.StatusBadRequest},
		{"in flight", service.ErrRunInFlight, http.StatusConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newCoordinatorRouter(&fakeRunService{syncErr: tt.err})
			w := serve(r, http.MethodPost, "/api/v1/pipeline/runs", `{"run_id":"run-1"}`)
			assert.Equal(t, tt.status, w.Code)
			assert.NotEmpty(t, errorDetail(t, w))
		})
	}

	t.Run("malformed json", func(t *testing.T) {
		w := serve(r, http.MethodPost, "/api/v1/pipeline/runs", `{"run_id":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSubmitRun(t *testing.T) {
	r := newCoordinatorRouter(&fakeRunService{})
	w := serve(r, http.MethodPost, "/api/v1/pipeline/runs/async", `{"run_id":"run-2"}`)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp dto.SubmitRunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "run-2", resp.RunID)
	assert.Equal(t, "QUEUED", resp.Status)

	r = newCoordinatorRouter(&fakeRunService{submitErr: runQueue.ErrQueueDisabled})
	w = serve(r, http.MethodPost, "/api/v1/pipeline/runs/async", `{"run_id":"run-2"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	r = newCoordinatorRouter(&fakeRunService{submitErr: repository.ErrAlreadyQueued})
	w = serve(r, http.MethodPost, "/api/v1/pipeline/runs/async", `{"run_id":"run-2"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetAndListRuns(t *testing.T) {
	svc := &fakeRunService{records: map[string]*domain.RunRecord{
		"run-3": {
			RunID:        "run-3",
			Status:       domain.RecordSucceeded,
			AnalysisType: domain.AnalysisBuilding,
			BuildingType: "office",
			Result:       `{"run_id":"run-3","status":"succeeded","state":"Done(Success)","stages":[]}`,
		},
	}}
	r := newCoordinatorRouter(svc)

	w := serve(r, http.MethodGet, "/api/v1/pipeline/runs/run-3", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp dto.RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "SUCCEEDED", resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, domain.StateDoneSuccess, resp.Result.State)

	w = serve(r, http.MethodGet, "/api/v1/pipeline/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, errorDetail(t, w), "nope")

	w = serve(r, http.MethodGet, "/api/v1/pipeline/runs?status=FAILED&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.RecordFailed, svc.listed)
	var list dto.ListRunsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)
	assert.Equal(t, "tok", list.NextToken)
	assert.Nil(t, list.Runs[0].Result)

	w = serve(r, http.MethodGet, "/api/v1/pipeline/runs?status=BOGUS", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodGet, "/api/v1/pipeline/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
