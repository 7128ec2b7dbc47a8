package handler

import (
	"context"
	"errors"
	"time"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	"simflow/internal/dto"
	"simflow/internal/logger"
	"simflow/internal/simulation"
)

type SimulationHandler struct {
	logger            logger.Logger
	runner            *simulation.Runner
	energyPlusVersion string
	now               func() time.Time
}

func NewSimulationHandler(log logger.Logger, runner *simulation.Runner, energyPlusVersion string) *SimulationHandler {
	return &SimulationHandler{
		logger:            log.With(logger.String("component", "simulation_handler")),
		runner:            runner,
		energyPlusVersion: energyPlusVersion,
		now:               time.Now,
	}
}

// RunService executes EnergyPlus and blocks until it exits or times out.
func (h *SimulationHandler) RunService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.SimulationRunRequest],
) (dto.SimulationRunResponse, *error_handler.ErrorCollection) {
	body := ioutil.Body
	req := simulation.RunRequest{
		IDFPath:         body.IDFPath,
		WeatherFile:     body.WeatherFile,
		OutputDirectory: body.OutputDirectory,
		Annual:          body.Annual,
		DesignDay:       body.DesignDay,
		ReadVars:        boolOr(body.ReadVars, true),
		ExpandObjects:   boolOr(body.ExpandObjects, true),
		Timeout:         time.Duration(body.TimeoutSeconds) * time.Second,
	}

	res, err := h.runner.Run(ctx, req)
	if err != nil {
		log := h.logger.WithContext(ctx)
		var runErr *simulation.RunError
		switch {
		case errors.Is(err, simulation.ErrInputNotFound):
			return dto.SimulationRunResponse{}, error_handler.NotFound(err.Error())
		case errors.As(err, &runErr) && runErr.Timeout:
			log.Warn("simulation timed out", logger.Duration("after", runErr.After))
			return dto.SimulationRunResponse{}, error_handler.GatewayTimeout(err.Error())
		}
		log.Error("simulation failed", logger.Error(err))
		return dto.SimulationRunResponse{}, error_handler.Internal(err.Error())
	}

	return dto.SimulationRunResponse{
		Success:         true,
		IDFPath:         body.IDFPath,
		WeatherFile:     body.WeatherFile,
		OutputDirectory: res.OutputDirectory,
		DurationSeconds: res.Duration.Seconds(),
		ReturnCode:      res.ReturnCode,
		Files:           res.Files,
	}, nil
}

func (h *SimulationHandler) StatusService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.SimulationStatusResponse, *error_handler.ErrorCollection) {
	return dto.SimulationStatusResponse{
		Status:              "ready",
		EnergyPlusAvailable: h.runner.Available(),
		EnergyPlusVersion:   h.energyPlusVersion,
		ExecutablePath:      h.runner.ExecutablePath(),
		Timestamp:           timestamp(h.now()),
	}, nil
}

func (h *SimulationHandler) ResultsService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.ResultsResponse, *error_handler.ErrorCollection) {
	dir := ioutil.QueryParams["output_directory"]
	if dir == "" {
		return dto.ResultsResponse{}, error_handler.Validation("output_directory is required")
	}
	withSeries, err := ioutil.QueryBool("include_timeseries", false)
	if err != nil {
		return dto.ResultsResponse{}, error_handler.Validation("include_timeseries must be a boolean")
	}

	d, err := simulation.Describe(dir, withSeries)
	if err != nil {
		return dto.ResultsResponse{}, resultsError(err)
	}

	totals := make(map[string]dto.MeterTotal, len(d.EnergyTotals))
	for name, t := range d.EnergyTotals {
		totals[name] = dto.MeterTotal{Total: t.Total, Unit: t.Unit}
	}
	return dto.ResultsResponse{
		Success:         true,
		OutputDirectory: d.OutputDirectory,
		Files:           d.FilesByExtension,
		Summary: dto.ResultsDetail{
			CompletionStatus:    d.CompletionStatus,
			Meters:              d.Meters,
			EnergyTotals:        totals,
			HTMLReportAvailable: d.HTMLReportAvailable,
			HasEnergySummary:    d.HasEnergySummary,
		},
		Errors:     d.Errors,
		Warnings:   d.Warnings,
		Timeseries: d.Timeseries,
	}, nil
}

func (h *SimulationHandler) SummaryService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.ResultsSummaryResponse, *error_handler.ErrorCollection) {
	dir := ioutil.QueryParams["output_directory"]
	if dir == "" {
		return dto.ResultsSummaryResponse{}, error_handler.Validation("output_directory is required")
	}

	s, err := simulation.Summarize(dir)
	if err != nil {
		return dto.ResultsSummaryResponse{}, resultsError(err)
	}
	if s.ParseError != "" {
		h.logger.WithContext(ctx).Warn("meter csv could not be parsed",
			logger.String("output_directory", dir),
			logger.String("parse_error", s.ParseError))
	}

	return dto.ResultsSummaryResponse{
		Success:             true,
		OutputDirectory:     s.OutputDirectory,
		SimulationCompleted: s.SimulationCompleted,
		WarningsCount:       s.WarningsCount,
		ErrorsCount:         s.ErrorsCount,
		EnergySummary:       s.EnergySummary,
		KeyMetrics:          s.KeyMetrics,
		ParseError:          s.ParseError,
	}, nil
}

func resultsError(err error) *error_handler.ErrorCollection {
	if errors.Is(err, simulation.ErrOutputNotFound) {
		return error_handler.NotFound(err.Error())
	}
	return error_handler.Internal(err.Error())
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
