package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	runQueue "simflow/internal/consumer/run_queue/iface"
	"simflow/internal/domain"
	"simflow/internal/logger"
	repository "simflow/internal/repository/iface"
	"simflow/internal/slack"
)

// RunService is the coordinator's entry point: it validates requests, guards
// run ids, records results in the ledger and notifies on failures.
type RunService interface {
	// Prepare normalizes and validates req before acceptance.
	Prepare(req *domain.RunRequest) error
	RunSync(ctx context.Context, req *domain.RunRequest) (*domain.PipelineResult, error)
	Submit(ctx context.Context, req *domain.RunRequest) (*domain.RunRecord, error)
	ExecuteQueued(ctx context.Context, req *domain.RunRequest, submittedAt int64) bool
	Get(ctx context.Context, runID string) (*domain.RunRecord, error)
	List(ctx context.Context, status domain.RecordStatus, limit int, nextToken string) (*repository.RunPage, error)
}

type runService struct {
	coordinator PipelineCoordinator
	gate        ExportGate
	guard       RunGuard
	runs        repository.RunRepository
	publisher   runQueue.RunPublisher
	notifier    slack.Client
	channel     string
	logger      logger.Logger
	now         func() time.Time
}

func NewRunService(
	coordinator PipelineCoordinator,
	gate ExportGate,
	guard RunGuard,
	runs repository.RunRepository,
	publisher runQueue.RunPublisher,
	notifier slack.Client,
	channel string,
	log logger.Logger,
) RunService {
	return &runService{
		coordinator: coordinator,
		gate:        gate,
		guard:       guard,
		runs:        runs,
		publisher:   publisher,
		notifier:    notifier,
		channel:     channel,
		logger:      log.With(logger.String("component", "run_service")),
		now:         time.Now,
	}
}

func (s *runService) Prepare(req *domain.RunRequest) error {
	req.Normalize()

	err := req.Validate()
	if req.Export.When == "" {
		return err
	}

	var verr *domain.ValidationError
	if err != nil && !errors.As(err, &verr) {
		return err
	}
	if cerr := s.gate.Compile(req.Export.When); cerr != nil {
		if verr == nil {
			verr = &domain.ValidationError{}
		}
		verr.Problems = append(verr.Problems, "export.when: "+cerr.Error())
	}
	if verr != nil {
		return verr
	}
	return nil
}

// RunSync executes req on the caller's goroutine. The run is detached from
// ctx cancellation so a disconnecting client cannot abort a started stage.
func (s *runService) RunSync(ctx context.Context, req *domain.RunRequest) (*domain.PipelineResult, error) {
	if err := s.Prepare(req); err != nil {
		return nil, err
	}

	release, err := s.guard.Acquire(ctx, req.RunID)
	if err != nil {
		return nil, err
	}
	defer release()

	return s.execute(context.WithoutCancel(ctx), req, 0), nil
}

// Submit records a QUEUED ledger entry and publishes the run.
func (s *runService) Submit(ctx context.Context, req *domain.RunRequest) (*domain.RunRecord, error) {
	if err := s.Prepare(req); err != nil {
		return nil, err
	}

	rec := domain.NewQueuedRecord(req, s.now())
	if err := s.runs.Create(ctx, rec); err != nil {
		return nil, err
	}

	msg := runQueue.RunMessage{RunID: req.RunID, Request: *req, SubmittedAt: rec.SubmittedAt}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		// leave no QUEUED record behind for a run that was never sent
		failed := *rec
		failed.Status = domain.RecordFailed
		failed.ErrorMessage = "not queued: " + err.Error()
		failed.UpdatedAt = s.now().UnixMilli()
		if perr := s.runs.Put(ctx, &failed); perr != nil {
			s.logger.Error("failed to mark unqueued run", logger.String("run_id", req.RunID), logger.Error(perr))
		}
		return nil, err
	}

	return rec, nil
}

// ExecuteQueued runs a message from the queue. Pipeline failures are final;
// only a run id conflict asks for redelivery.
func (s *runService) ExecuteQueued(ctx context.Context, req *domain.RunRequest, submittedAt int64) bool {
	if err := s.Prepare(req); err != nil {
		s.logger.Error("dropping invalid queued run", logger.String("run_id", req.RunID), logger.Error(err))
		return true
	}

	release, err := s.guard.Acquire(ctx, req.RunID)
	if err != nil {
		s.logger.Warn("queued run not started", logger.String("run_id", req.RunID), logger.Error(err))
		return false
	}
	defer release()

	s.execute(ctx, req, submittedAt)
	return true
}

func (s *runService) execute(ctx context.Context, req *domain.RunRequest, submittedAt int64) *domain.PipelineResult {
	result := s.coordinator.Run(ctx, req)

	rec, err := domain.NewRecordFromResult(req, result, submittedAt)
	if err != nil {
		s.logger.Error("failed to build run record", logger.String("run_id", req.RunID), logger.Error(err))
	} else if err := s.runs.Put(ctx, rec); err != nil {
		s.logger.Error("failed to record run", logger.String("run_id", req.RunID), logger.Error(err))
	}

	s.notify(ctx, result)
	return result
}

func (s *runService) notify(ctx context.Context, result *domain.PipelineResult) {
	var message string
	switch {
	case !result.Succeeded():
		message = fmt.Sprintf(":x: simulation run %s failed at %s: %s", result.RunID, result.FailedStage, result.Error.Message)
	case result.ExportPartialFailure:
		sr, _ := result.StageResult(domain.StageExport)
		detail := ""
		if sr.Error != nil {
			detail = sr.Error.Message
		}
		message = fmt.Sprintf(":warning: simulation run %s succeeded but export was incomplete: %s", result.RunID, detail)
	default:
		return
	}

	if err := s.notifier.SendMessage(ctx, s.channel, message); err != nil {
		s.logger.Warn("failed to send notification", logger.String("run_id", result.RunID), logger.Error(err))
	}
}

func (s *runService) Get(ctx context.Context, runID string) (*domain.RunRecord, error) {
	return s.runs.GetByID(ctx, runID)
}

func (s *runService) List(ctx context.Context, status domain.RecordStatus, limit int, nextToken string) (*repository.RunPage, error) {
	switch status {
	case domain.RecordQueued, domain.RecordSucceeded, domain.RecordFailed:
	default:
		return nil, &domain.ValidationError{Problems: []string{fmt.Sprintf("unknown status %q", status)}}
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.runs.ListByStatus(ctx, status, limit, nextToken)
}
