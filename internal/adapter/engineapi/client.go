package engineapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"

	adapter "simflow/internal/adapter/iface"
	discovery "simflow/internal/discovery/iface"
	"simflow/internal/domain"
	"simflow/internal/dto"
	"simflow/internal/logger"

	"github.com/gin-gonic/gin/binding"
)

const maxResponseBytes = 8 << 20

// APIError is a non-2xx reply from the engine.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("engine api error (status=%d)", e.StatusCode)
	}
	return fmt.Sprintf("engine api error (status=%d): %s", e.StatusCode, e.Detail)
}

// Client talks to the engine HTTP API and implements every stage adapter.
// Deadlines come from the caller's context; the http.Client has none.
type Client struct {
	endpoint discovery.EndpointResolver
	http     *http.Client
	logger   logger.Logger
}

func NewClient(endpoint discovery.EndpointResolver, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint: endpoint,
		http:     httpClient,
		logger:   log.With(logger.String("component", "engine_client")),
	}
}

// Adapters exposes the client through the coordinator's stage boundaries.
func (c *Client) Adapters() adapter.Adapters {
	return adapter.Adapters{
		Health:     c,
		Weather:    c,
		Model:      c,
		Simulation: c,
		Results:    c,
		Export:     c,
	}
}

func (c *Client) CheckHealth(ctx context.Context) (*domain.EngineStatus, error) {
	var out dto.EngineHealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, stageError(domain.StageHealthCheck, "engine health check failed", err)
	}
	if out.Status != "healthy" {
		return nil, domain.NewStageError(domain.StageHealthCheck,
			fmt.Sprintf("engine reported status %q", out.Status))
	}
	return &domain.EngineStatus{
		Status:            out.Status,
		EnergyPlusVersion: out.EnergyPlusVersion,
		ServerVersion:     out.ServerVersion,
	}, nil
}

func (c *Client) FetchWeather(ctx context.Context, req adapter.WeatherRequest) (*domain.WeatherArtifact, error) {
	lat, lon := req.Latitude, req.Longitude
	body := dto.WeatherFetchRequest{Latitude: &lat, Longitude: &lon, LocationName: req.Name}

	var out dto.WeatherFetchResponse
	if err := c.do(ctx, http.MethodPost, "/api/weather/fetch", body, &out); err != nil {
		return nil, stageError(domain.StageWeatherFetch, "weather fetch failed", err)
	}
	if !out.Success {
		return nil, domain.NewStageError(domain.StageWeatherFetch, "engine reported weather fetch failure")
	}

	art := &domain.WeatherArtifact{
		EPWPath:      out.EPWPath,
		LocationName: out.Location.Name,
		DataSource:   out.Metadata.DataSource,
		APISource:    out.APISource,
	}
	if out.Coverage != nil {
		art.CoverageNotes = out.Coverage.Notes
	}
	return art, nil
}

func (c *Client) GenerateModel(ctx context.Context, req adapter.ModelRequest) (*domain.ModelArtifact, error) {
	projectName := req.ProjectName
	if projectName == "" {
		projectName = req.RunID
	}
	body := dto.NewModelGenerateRequest(req.ProjectID, projectName, req.Location, req.Building, req.Simulation)

	// same rules the engine binds with, so a bad spec never leaves the process
	if err := binding.Validator.ValidateStruct(&body); err != nil {
		return nil, domain.NewStageError(domain.StageModelGenerate, "invalid building specification").
			WithDetail(err.Error())
	}

	var out dto.ModelGenerateResponse
	if err := c.do(ctx, http.MethodPost, "/api/models/generate", body, &out); err != nil {
		return nil, stageError(domain.StageModelGenerate, "model generation failed", err)
	}
	if !out.Success {
		return nil, domain.NewStageError(domain.StageModelGenerate, "engine reported model generation failure")
	}

	return &domain.ModelArtifact{
		ModelPath:     out.OutputPath,
		TemplateUsed:  out.TemplateUsed,
		Modifications: out.ModificationsApplied,
	}, nil
}

func (c *Client) RunSimulation(ctx context.Context, req adapter.SimulationRequest) (*domain.SimulationArtifact, error) {
	readVars, expand := req.ReadVars, req.ExpandObjects
	body := dto.SimulationRunRequest{
		IDFPath:        req.ModelPath,
		WeatherFile:    req.WeatherPath,
		Annual:         req.Annual,
		DesignDay:      req.DesignDay,
		ReadVars:       &readVars,
		ExpandObjects:  &expand,
		TimeoutSeconds: int(math.Ceil(req.Timeout.Seconds())),
	}

	var out dto.SimulationRunResponse
	if err := c.do(ctx, http.MethodPost, "/api/simulation/run", body, &out); err != nil {
		se := stageError(domain.StageSimulationRun, "simulation failed", err)
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusGatewayTimeout {
			se.Timeout = true
		}
		return nil, se
	}
	if !out.Success {
		return nil, domain.NewStageError(domain.StageSimulationRun, "engine reported simulation failure").
			WithDetail(fmt.Sprintf("return code %d", out.ReturnCode))
	}

	return &domain.SimulationArtifact{
		OutputDirectory: out.OutputDirectory,
		DurationSeconds: out.DurationSeconds,
		Files:           out.Files,
	}, nil
}

func (c *Client) CollectResults(ctx context.Context, outputDirectory string) (*domain.ResultsSummary, error) {
	path := "/api/simulation/results/summary?output_directory=" + url.QueryEscape(outputDirectory)

	var out dto.ResultsSummaryResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, stageError(domain.StageResultsCollect, "results collection failed", err)
	}
	if out.ParseError != "" {
		c.logger.Warn("engine could not parse meter output",
			logger.String("output_directory", outputDirectory),
			logger.String("parse_error", out.ParseError))
	}
	return out.ToDomain(), nil
}

func (c *Client) Export(ctx context.Context, req adapter.ExportRequest) (*domain.DestinationOutcome, error) {
	body := dto.ExportRequest{SourceFolder: req.OutputDirectory, DestinationFolder: req.DestinationFolder}

	var out dto.ExportResponse
	if err := c.do(ctx, http.MethodPost, "/api/export/"+url.PathEscape(req.Destination), body, &out); err != nil {
		return nil, stageError(domain.StageExport, "export to "+req.Destination+" failed", err)
	}
	if out.Destination == "" {
		out.Destination = req.Destination
	}
	return out.ToDomain(), nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	base := strings.TrimRight(c.endpoint.BaseURL(), "/")
	if base == "" {
		return errors.New("engine base url is not configured")
	}

	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if reqID, ok := logger.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", reqID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read engine response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Detail: errorDetail(body)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode engine response: %w", err)
	}
	return nil
}

// errorDetail extracts {"detail": ...} from an error body, falling back to the
// raw text.
func errorDetail(body []byte) string {
	var envelope struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Detail != "" {
		return envelope.Detail
	}
	text := strings.TrimSpace(string(body))
	if len(text) > 500 {
		text = text[:500]
	}
	return text
}

func stageError(stage domain.Stage, message string, err error) *domain.StageError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return domain.NewStageError(stage, message).WithDetail(apiErr.Error())
	}
	return domain.NewStageError(stage, message).WithDetail(err.Error())
}
