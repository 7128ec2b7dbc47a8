package handler

import (
	"context"
	"errors"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	runQueue "simflow/internal/consumer/run_queue/iface"
	"simflow/internal/domain"
	"simflow/internal/dto"
	"simflow/internal/logger"
	"simflow/internal/repository"
	"simflow/internal/service"
)

type RunHandler struct {
	logger     logger.Logger
	runService service.RunService
}

func NewRunHandler(
	log logger.Logger,
	runService service.RunService,
) *RunHandler {
	return &RunHandler{
		logger:     log.With(logger.String("component", "run_handler")),
		runService: runService,
	}
}

// RunSyncService executes the pipeline inside the request and returns the
// PipelineResult whether the run succeeded or failed.
func (h *RunHandler) RunSyncService(
	ctx context.Context,
	ioutil *handler.RequestIo[domain.RunRequest],
) (*domain.PipelineResult, *error_handler.ErrorCollection) {
	req := ioutil.Body
	result, err := h.runService.RunSync(ctx, &req)
	if err != nil {
		return nil, h.runError(ctx, req.RunID, err)
	}
	return result, nil
}

func (h *RunHandler) SubmitRunService(
	ctx context.Context,
	ioutil *handler.RequestIo[domain.RunRequest],
) (dto.SubmitRunResponse, *error_handler.ErrorCollection) {
	req := ioutil.Body
	rec, err := h.runService.Submit(ctx, &req)
	if err != nil {
		return dto.SubmitRunResponse{}, h.runError(ctx, req.RunID, err)
	}
	return dto.SubmitRunResponse{RunID: rec.RunID, Status: string(rec.Status)}, nil
}

func (h *RunHandler) GetRunService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.RunResponse, *error_handler.ErrorCollection) {
	runID := ioutil.PathParams["id"]
	if runID == "" {
		return dto.RunResponse{}, error_handler.Validation("run_id is required")
	}

	rec, err := h.runService.Get(ctx, runID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return dto.RunResponse{}, error_handler.NotFound("run not found: " + runID)
		}
		h.logger.Error("failed to get run", logger.String("run_id", runID), logger.Error(err))
		return dto.RunResponse{}, error_handler.Internal("failed to get run")
	}

	resp, err := toRunResponse(rec)
	if err != nil {
		h.logger.Error("failed to decode run result", logger.String("run_id", runID), logger.Error(err))
		return dto.RunResponse{}, error_handler.Internal("failed to decode run result")
	}
	return resp, nil
}

func (h *RunHandler) ListRunsService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.ListRunsResponse, *error_handler.ErrorCollection) {
	status := domain.RecordStatus(ioutil.QueryParams["status"])
	if status == "" {
		status = domain.RecordSucceeded
	}
	limit, err := ioutil.QueryInt("limit", 20)
	if err != nil {
		return dto.ListRunsResponse{}, error_handler.Validation("limit must be an integer")
	}

	page, err := h.runService.List(ctx, status, limit, ioutil.QueryParams["next_token"])
	if err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) || errors.Is(err, repository.ErrInvalidToken) {
			return dto.ListRunsResponse{}, error_handler.Validation(err.Error())
		}
		h.logger.Error("failed to list runs", logger.String("status", string(status)), logger.Error(err))
		return dto.ListRunsResponse{}, error_handler.Internal("failed to list runs")
	}

	runs := make([]dto.RunResponse, 0, len(page.Runs))
	for _, rec := range page.Runs {
		// list views skip the embedded result
		runs = append(runs, recordResponse(rec))
	}

	return dto.ListRunsResponse{
		Runs: runs,
		PaginationResponse: dto.PaginationResponse{
			Count:     len(runs),
			NextToken: page.NextToken,
		},
	}, nil
}

func (h *RunHandler) runError(ctx context.Context, runID string, err error) *error_handler.ErrorCollection {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return error_handler.Validation(err.Error())
	case errors.Is(err, service.ErrRunInFlight), errors.Is(err, repository.ErrAlreadyQueued):
		return error_handler.Conflict(err.Error())
	case errors.Is(err, runQueue.ErrQueueDisabled):
		return error_handler.Unavailable("asynchronous runs are disabled")
	}
	h.logger.WithContext(ctx).Error("run request failed", logger.String("run_id", runID), logger.Error(err))
	return error_handler.Internal(err.Error())
}

func recordResponse(rec *domain.RunRecord) dto.RunResponse {
	return dto.RunResponse{
		RunID:        rec.RunID,
		Status:       string(rec.Status),
		AnalysisType: string(rec.AnalysisType),
		BuildingType: rec.BuildingType,
		FailedStage:  string(rec.FailedStage),
		Error:        rec.ErrorMessage,
		SubmittedAt:  rec.SubmittedAt,
		CompletedAt:  rec.CompletedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}

func toRunResponse(rec *domain.RunRecord) (dto.RunResponse, error) {
	resp := recordResponse(rec)
	result, err := rec.DecodeResult()
	if err != nil {
		return dto.RunResponse{}, err
	}
	resp.Result = result
	return resp, nil
}
