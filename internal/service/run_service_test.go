package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	runQueue "simflow/internal/consumer/run_queue/iface"
	"simflow/internal/domain"
	"simflow/internal/logger"
	repoerrs "simflow/internal/repository"
	repository "simflow/internal/repository/iface"
	"simflow/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCoordinator struct {
	mu      sync.Mutex
	calls   int
	block   chan struct{}
	started chan struct{}
	fail    bool
	partial bool
}

func (c *stubCoordinator) Run(ctx context.Context, req *domain.RunRequest) *domain.PipelineResult {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.started != nil {
		close(c.started)
	}
	if c.block != nil {
		<-c.block
	}

	now := time.UnixMilli(1700000000000)
	res := &domain.PipelineResult{
		RunID:       req.RunID,
		Status:      domain.RunStatusSucceeded,
		State:       domain.StateDoneSuccess,
		StartedAt:   now,
		CompletedAt: now.Add(time.Second),
	}
	if c.fail {
		res.Status = domain.RunStatusFailed
		res.State = domain.StateDoneFailed
		res.FailedStage = domain.StageWeatherFetch
		res.Error = domain.NewStageError(domain.StageWeatherFetch, "no coverage")
	}
	if c.partial {
		res.ExportPartialFailure = true
		res.Stages = []domain.StageResult{{
			Stage: domain.StageExport,
			Error: &domain.StageError{Kind: domain.KindExportPartialFailure, Stage: domain.StageExport, Message: "2 files uploaded, 1 failed"},
		}}
	}
	return res
}

type recordingNotifier struct {
	messages []string
}

func (n *recordingNotifier) SendMessage(_ context.Context, _ string, message string) error {
	n.messages = append(n.messages, message)
	return nil
}

type recordingPublisher struct {
	messages []runQueue.RunMessage
	err      error
}

func (p *recordingPublisher) Publish(_ context.Context, msg runQueue.RunMessage) error {
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

type serviceFixture struct {
	svc       RunService
	coord     *stubCoordinator
	notifier  *recordingNotifier
	publisher *recordingPublisher
	runs      repository.RunRepository
}

func newServiceFixture() *serviceFixture {
	log := logger.NewNopLogger()
	f := &serviceFixture{
		coord:     &stubCoordinator{},
		notifier:  &recordingNotifier{},
		publisher: &recordingPublisher{},
		runs:      memory.NewRunRepository(),
	}
	f.svc = NewRunService(f.coord, NewExportGate(log), NewMemoryRunGuard(), f.runs, f.publisher, f.notifier, "#sim", log)
	return f
}

func serviceRequest() *domain.RunRequest {
	return &domain.RunRequest{
		RunID:      "svc-1",
		Location:   domain.Location{Latitude: 52.2, Longitude: 0.12},
		Building:   domain.BuildingSpec{BuildingType: "office"},
		Simulation: domain.SimulationOptions{DesignDay: true},
	}
}

func TestPrepare(t *testing.T) {
	f := newServiceFixture()

	req := serviceRequest()
	req.Export.When = "pue <"
	err := f.svc.Prepare(req)
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems[0], "export.when")

	req = serviceRequest()
	req.Location.Latitude = 100
	req.Export.When = "nope("
	err = f.svc.Prepare(req)
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)

	req = serviceRequest()
	req.Simulation.TimeoutSeconds = 100000
	err = f.svc.Prepare(req)
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Problems[0], "timeout_seconds")

	req = serviceRequest()
	req.RunID = ""
	require.NoError(t, f.svc.Prepare(req))
	assert.NotEmpty(t, req.RunID)
}

func TestRunSyncRecordsLedger(t *testing.T) {
	f := newServiceFixture()

	res, err := f.svc.RunSync(context.Background(), serviceRequest())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())

	rec, err := f.svc.Get(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordSucceeded, rec.Status)
	assert.Empty(t, f.notifier.messages)
}

func TestRunSyncFailureNotifies(t *testing.T) {
	f := newServiceFixture()
	f.coord.fail = true

	res, err := f.svc.RunSync(context.Background(), serviceRequest())
	require.NoError(t, err)
	assert.False(t, res.Succeeded())

	rec, err := f.svc.Get(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordFailed, rec.Status)
	assert.Equal(t, domain.StageWeatherFetch, rec.FailedStage)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "failed at WeatherFetch")
}

func TestRunSyncPartialExportNotifies(t *testing.T) {
	f := newServiceFixture()
	f.coord.partial = true

	_, err := f.svc.RunSync(context.Background(), serviceRequest())
	require.NoError(t, err)
	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "export was incomplete")
}

func TestRunSyncRejectsConcurrentRunID(t *testing.T) {
	f := newServiceFixture()
	f.coord.block = make(chan struct{})
	f.coord.started = make(chan struct{})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := f.svc.RunSync(context.Background(), serviceRequest())
		assert.NoError(t, err)
	}()
	<-f.coord.started

	_, err := f.svc.RunSync(context.Background(), serviceRequest())
	assert.ErrorIs(t, err, ErrRunInFlight)

	assert.False(t, f.svc.ExecuteQueued(context.Background(), serviceRequest(), 0))

	close(f.coord.block)
	<-done

	f.coord.started = nil
	_, err = f.svc.RunSync(context.Background(), serviceRequest())
	assert.NoError(t, err)
}

func TestRunSyncIgnoresClientCancellation(t *testing.T) {
	f := newServiceFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := f.svc.RunSync(ctx, serviceRequest())
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
}

func TestSubmitAndExecuteQueued(t *testing.T) {
	f := newServiceFixture()
	ctx := context.Background()

	rec, err := f.svc.Submit(ctx, serviceRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.RecordQueued, rec.Status)
	require.Len(t, f.publisher.messages, 1)

	_, err = f.svc.Submit(ctx, serviceRequest())
	assert.True(t, repoerrs.IsAlreadyQueued(err))

	msg := f.publisher.messages[0]
	assert.True(t, f.svc.ExecuteQueued(ctx, &msg.Request, msg.SubmittedAt))

	stored, err := f.svc.Get(ctx, "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordSucceeded, stored.Status)
	assert.Equal(t, rec.SubmittedAt, stored.SubmittedAt)
}

func TestSubmitQueueDisabled(t *testing.T) {
	f := newServiceFixture()
	f.publisher.err = runQueue.ErrQueueDisabled

	_, err := f.svc.Submit(context.Background(), serviceRequest())
	assert.ErrorIs(t, err, runQueue.ErrQueueDisabled)

	rec, err := f.svc.Get(context.Background(), "svc-1")
	require.NoError(t, err)
	assert.Equal(t, domain.RecordFailed, rec.Status)
}

func TestExecuteQueuedFailedPipelineIsFinal(t *testing.T) {
	f := newServiceFixture()
	f.coord.fail = true

	assert.True(t, f.svc.ExecuteQueued(context.Background(), serviceRequest(), 0))
	assert.Equal(t, 1, f.coord.calls)
}

func TestList(t *testing.T) {
	f := newServiceFixture()
	_, err := f.svc.RunSync(context.Background(), serviceRequest())
	require.NoError(t, err)

	page, err := f.svc.List(context.Background(), domain.RecordSucceeded, 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Runs, 1)

	_, err = f.svc.List(context.Background(), "RUNNING", 10, "")
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))
}

func TestRunGuards(t *testing.T) {
	g := NewMemoryRunGuard()
	release, err := g.Acquire(context.Background(), "a")
	require.NoError(t, err)

	_, err = g.Acquire(context.Background(), "a")
	assert.ErrorIs(t, err, ErrRunInFlight)

	_, err = g.Acquire(context.Background(), "b")
	assert.NoError(t, err)

	release()
	release()
	_, err = g.Acquire(context.Background(), "a")
	assert.NoError(t, err)
}
