package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"simflow/commons/settings"
	adapter "simflow/internal/adapter/iface"
	"simflow/internal/domain"
	"simflow/internal/logger"
)

// CoordinatorConfig holds every tunable of the pipeline driver.
type CoordinatorConfig struct {
	HealthTimeout    time.Duration
	WeatherTimeout   time.Duration
	ModelTimeout     time.Duration
	DesignDayTimeout time.Duration
	AnnualTimeout    time.Duration
	ResultsTimeout   time.Duration
	// ExportTimeout applies to each destination separately.
	ExportTimeout time.Duration
	// Grace is added to the simulation timeout on the coordinator side so the
	// engine's own timeout report wins the race.
	Grace time.Duration

	DefaultGDriveFolder string
}

func NewCoordinatorConfig(s *settings.Settings) CoordinatorConfig {
	return CoordinatorConfig{
		HealthTimeout:       s.Timeouts.Health,
		WeatherTimeout:      s.Timeouts.Weather,
		ModelTimeout:        s.Timeouts.Model,
		DesignDayTimeout:    s.Timeouts.DesignDay,
		AnnualTimeout:       s.Timeouts.Annual,
		ResultsTimeout:      s.Timeouts.Results,
		ExportTimeout:       s.Timeouts.Export,
		Grace:               s.Timeouts.Grace,
		DefaultGDriveFolder: s.Export.GDriveFolder,
	}
}

// SimulationTimeout is the deadline forwarded to the engine for req.
func (c CoordinatorConfig) SimulationTimeout(req *domain.RunRequest) time.Duration {
	if req.Simulation.TimeoutSeconds > 0 {
		return time.Duration(req.Simulation.TimeoutSeconds) * time.Second
	}
	if req.Simulation.Annual {
		return c.AnnualTimeout
	}
	return c.DesignDayTimeout
}

// PipelineCoordinator drives one run through the stage machine.
type PipelineCoordinator interface {
	Run(ctx context.Context, req *domain.RunRequest) *domain.PipelineResult
}

type CoordinatorOption func(*pipelineCoordinator)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *pipelineCoordinator) {
		c.now = now
	}
}

type pipelineCoordinator struct {
	adapters adapter.Adapters
	gate     ExportGate
	cfg      CoordinatorConfig
	logger   logger.Logger
	now      func() time.Time
}

func NewPipelineCoordinator(adapters adapter.Adapters, gate ExportGate, cfg CoordinatorConfig, log logger.Logger, opts ...CoordinatorOption) PipelineCoordinator {
	c := &pipelineCoordinator{
		adapters: adapters,
		gate:     gate,
		cfg:      cfg,
		logger:   log.With(logger.String("component", "pipeline_coordinator")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pipelineRun is the private state of one Run call.
type pipelineRun struct {
	req    *domain.RunRequest
	state  *domain.RunState
	result *domain.PipelineResult
	log    logger.Logger
}

// Run executes every stage in order and stops at the first terminal failure.
// It always returns a result; failures are reported inside it.
func (c *pipelineCoordinator) Run(ctx context.Context, req *domain.RunRequest) *domain.PipelineResult {
	started := c.now()
	run := &pipelineRun{
		req:   req,
		state: domain.NewRunState(req.RunID, started),
		result: &domain.PipelineResult{
			RunID:     req.RunID,
			StartedAt: started,
		},
		log: c.logger.WithContext(ctx).With(logger.String("run_id", req.RunID)),
	}

	run.log.Info("pipeline started",
		logger.String("analysis_type", string(req.AnalysisType)),
		logger.String("building_type", req.Building.BuildingType))

	if err := c.execute(ctx, run); err != nil {
		return c.fail(run, err)
	}
	return c.succeed(run)
}

func (c *pipelineCoordinator) execute(ctx context.Context, run *pipelineRun) *domain.StageError {
	req, res := run.req, run.result

	engine, err := runStage(c, ctx, run, domain.StageHealthCheck, c.cfg.HealthTimeout,
		func(ctx context.Context) (*domain.EngineStatus, error) {
			return c.adapters.Health.CheckHealth(ctx)
		},
		func(s *domain.EngineStatus) (string, error) {
			if s.Status != "healthy" {
				return "", fmt.Errorf("engine reported status %q", s.Status)
			}
			return "energyplus " + s.EnergyPlusVersion, nil
		})
	if err != nil {
		return err
	}
	res.Engine = engine

	weather, err := runStage(c, ctx, run, domain.StageWeatherFetch, c.cfg.WeatherTimeout,
		func(ctx context.Context) (*domain.WeatherArtifact, error) {
			return c.adapters.Weather.FetchWeather(ctx, adapter.WeatherRequest{
				Latitude:  req.Location.Latitude,
				Longitude: req.Location.Longitude,
				Name:      req.Location.Name,
			})
		},
		func(w *domain.WeatherArtifact) (string, error) {
			return required("epw_path", w.EPWPath)
		})
	if err != nil {
		return err
	}
	res.Weather = weather
	res.Artifacts.WeatherFile = weather.EPWPath

	model, err := runStage(c, ctx, run, domain.StageModelGenerate, c.cfg.ModelTimeout,
		func(ctx context.Context) (*domain.ModelArtifact, error) {
			return c.adapters.Model.GenerateModel(ctx, adapter.ModelRequest{
				RunID:       req.RunID,
				ProjectName: req.ProjectName,
				ProjectID:   req.ProjectID,
				Location:    req.Location,
				Building:    req.Building,
				Simulation:  req.Simulation,
			})
		},
		func(m *domain.ModelArtifact) (string, error) {
			return required("output_path", m.ModelPath)
		})
	if err != nil {
		return err
	}
	res.Model = model
	res.Artifacts.ModelFile = model.ModelPath

	simTimeout := c.cfg.SimulationTimeout(req)
	sim, err := runStage(c, ctx, run, domain.StageSimulationRun, simTimeout+c.cfg.Grace,
		func(ctx context.Context) (*domain.SimulationArtifact, error) {
			return c.adapters.Simulation.RunSimulation(ctx, adapter.SimulationRequest{
				ModelPath:     model.ModelPath,
				WeatherPath:   weather.EPWPath,
				Annual:        req.Simulation.Annual,
				DesignDay:     req.Simulation.DesignDay,
				ReadVars:      boolOr(req.Simulation.ReadVars, true),
				ExpandObjects: boolOr(req.Simulation.ExpandObjects, true),
				Timeout:       simTimeout,
			})
		},
		func(s *domain.SimulationArtifact) (string, error) {
			return required("output_directory", s.OutputDirectory)
		})
	if err != nil {
		return err
	}
	res.Simulation = sim
	res.Artifacts.OutputDirectory = sim.OutputDirectory

	summary, err := runStage(c, ctx, run, domain.StageResultsCollect, c.cfg.ResultsTimeout,
		func(ctx context.Context) (*domain.ResultsSummary, error) {
			return c.adapters.Results.CollectResults(ctx, sim.OutputDirectory)
		},
		func(r *domain.ResultsSummary) (string, error) {
			if r.OutputDirectory == "" {
				r.OutputDirectory = sim.OutputDirectory
			}
			return r.OutputDirectory + "#summary", nil
		})
	if err != nil {
		return err
	}
	res.Results = summary

	c.export(ctx, run)
	return nil
}

// export runs the optional export stage. It never fails the run.
func (c *pipelineCoordinator) export(ctx context.Context, run *pipelineRun) {
	req, res := run.req, run.result

	if !req.Export.Requested() {
		return
	}

	if req.Export.When != "" {
		allowed, err := c.gate.Allow(req.Export.When, NewGateEnv(req, res.Results))
		switch {
		case err != nil:
			res.ExportSkippedReason = err.Error()
		case !allowed:
			res.ExportSkippedReason = fmt.Sprintf("export condition %q evaluated to false", req.Export.When)
		}
		if res.ExportSkippedReason != "" {
			run.log.Info("export skipped", logger.String("reason", res.ExportSkippedReason))
			return
		}
	}

	stage := domain.StageExport
	startedAt := c.now()
	run.state.Begin(stage, startedAt)

	manifest := &domain.ExportManifest{}
	var problems []string
	for _, dest := range req.Export.Destinations() {
		outcome := c.exportTo(ctx, run, dest)
		if outcome.Error != "" {
			problems = append(problems, dest+": "+outcome.Error)
		}
		manifest.Add(*outcome)
	}

	sr := domain.StageResult{
		Stage:      stage,
		Success:    true,
		Artifact:   manifest.Ref(),
		StartedAt:  startedAt,
		DurationMS: c.now().Sub(startedAt).Milliseconds(),
	}
	if kind := manifest.Outcome(); kind != "" {
		sr.Success = false
		sr.Error = &domain.StageError{
			Kind:    kind,
			Stage:   stage,
			Message: fmt.Sprintf("%d files uploaded, %d failed", manifest.FilesUploaded, manifest.FilesFailed),
			Detail:  strings.Join(problems, "; "),
		}
		res.ExportPartialFailure = true
		run.log.Warn("export incomplete",
			logger.String("kind", string(kind)),
			logger.Int("files_uploaded", manifest.FilesUploaded),
			logger.Int("files_failed", manifest.FilesFailed))
	}

	run.state.Record(sr, c.now())
	res.Export = manifest
	res.Artifacts.ExportManifest = manifest.Ref()
}

func (c *pipelineCoordinator) exportTo(ctx context.Context, run *pipelineRun, dest string) *domain.DestinationOutcome {
	folder := run.req.Export.DestinationFolder
	if dest == domain.DestinationGDrive {
		folder = firstNonEmpty(run.req.Export.GDriveFolder, run.req.Export.DestinationFolder, c.cfg.DefaultGDriveFolder)
	}

	outcome, timedOut, err := runWithTimeout(ctx, c.cfg.ExportTimeout, func(ctx context.Context) (*domain.DestinationOutcome, error) {
		return c.adapters.Export.Export(ctx, adapter.ExportRequest{
			OutputDirectory:   run.result.Artifacts.OutputDirectory,
			Destination:       dest,
			DestinationFolder: folder,
		})
	})

	switch {
	case timedOut:
		outcome = &domain.DestinationOutcome{Error: fmt.Sprintf("timed out after %s", c.cfg.ExportTimeout)}
	case err != nil:
		outcome = &domain.DestinationOutcome{Error: err.Error()}
	case outcome == nil:
		outcome = &domain.DestinationOutcome{Error: "malformed export response"}
	}
	if outcome.Destination == "" {
		outcome.Destination = dest
	}
	if outcome.Error != "" {
		outcome.Success = false
		run.log.Warn("export destination failed",
			logger.String("destination", dest),
			logger.String("error", outcome.Error))
	}
	return outcome
}

// runStage invokes one adapter under timeout and records its StageResult.
// artifact validates the response and returns the stage's artifact reference.
func runStage[T any](
	c *pipelineCoordinator,
	ctx context.Context,
	run *pipelineRun,
	stage domain.Stage,
	timeout time.Duration,
	call func(context.Context) (*T, error),
	artifact func(*T) (string, error),
) (*T, *domain.StageError) {
	startedAt := c.now()
	run.state.Begin(stage, startedAt)
	run.log.Debug("stage started", logger.String("stage", string(stage)), logger.Duration("timeout", timeout))

	value, timedOut, err := runWithTimeout(ctx, timeout, call)

	var (
		stageErr *domain.StageError
		ref      string
	)
	switch {
	case timedOut:
		stageErr = domain.NewTimeoutError(stage, timeout)
	case err != nil:
		stageErr = domain.AsStageError(stage, err)
	case value == nil:
		stageErr = domain.NewStageError(stage, "malformed adapter response").WithDetail("empty response")
	default:
		var verr error
		if ref, verr = artifact(value); verr != nil {
			stageErr = domain.NewStageError(stage, "malformed adapter response").WithDetail(verr.Error())
		}
	}

	finished := c.now()
	run.state.Record(domain.StageResult{
		Stage:      stage,
		Success:    stageErr == nil,
		Artifact:   ref,
		Error:      stageErr,
		StartedAt:  startedAt,
		DurationMS: finished.Sub(startedAt).Milliseconds(),
	}, finished)

	if stageErr != nil {
		return nil, stageErr
	}
	run.log.Info("stage completed", logger.String("stage", string(stage)), logger.String("artifact", ref))
	return value, nil
}

// runWithTimeout bounds fn by d even when fn ignores its context.
func runWithTimeout[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("adapter panic: %v", r)}
			}
		}()
		v, err := fn(ctx)
		done <- outcome{value: v, err: err}
	}()

	select {
	case o := <-done:
		timedOut := o.err != nil && errors.Is(o.err, context.DeadlineExceeded) && errors.Is(ctx.Err(), context.DeadlineExceeded)
		return o.value, timedOut, o.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, true, ctx.Err()
		}
		return zero, false, fmt.Errorf("stage cancelled: %w", ctx.Err())
	}
}

func (c *pipelineCoordinator) succeed(run *pipelineRun) *domain.PipelineResult {
	now := c.now()
	run.state.Succeed(now)

	res := run.result
	res.Status = domain.RunStatusSucceeded
	res.State = domain.StateDoneSuccess
	c.finish(run, now)

	run.log.Info("pipeline succeeded",
		logger.Int64("duration_ms", res.DurationMS),
		logger.Bool("export_partial_failure", res.ExportPartialFailure))
	return res
}

func (c *pipelineCoordinator) fail(run *pipelineRun, err *domain.StageError) *domain.PipelineResult {
	now := c.now()
	run.state.Fail(now)

	res := run.result
	res.Status = domain.RunStatusFailed
	res.State = domain.StateDoneFailed
	res.FailedStage = err.Stage
	res.Error = err
	c.finish(run, now)

	run.log.Error("pipeline failed",
		logger.String("stage", string(err.Stage)),
		logger.String("kind", string(err.Kind)),
		logger.Bool("timeout", err.Timeout),
		logger.String("message", err.Message))
	return res
}

func (c *pipelineCoordinator) finish(run *pipelineRun, now time.Time) {
	res := run.result
	res.Stages = run.state.Results
	res.CompletedAt = now
	res.DurationMS = now.Sub(res.StartedAt).Milliseconds()
}

func required(field, value string) (string, error) {
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("%s is empty", field)
	}
	return value, nil
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
