package handler

import (
	"context"
	"time"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	"simflow/internal/dto"
	"simflow/internal/logger"
)

// EngineHandler serves the engine's service info and health documents.
type EngineHandler struct {
	logger            logger.Logger
	serverVersion     string
	energyPlusVersion string
	now               func() time.Time
}

func NewEngineHandler(log logger.Logger, serverVersion, energyPlusVersion string) *EngineHandler {
	return &EngineHandler{
		logger:            log.With(logger.String("component", "engine_handler")),
		serverVersion:     serverVersion,
		energyPlusVersion: energyPlusVersion,
		now:               time.Now,
	}
}

func (h *EngineHandler) InfoService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.ServiceInfoResponse, *error_handler.ErrorCollection) {
	return dto.ServiceInfoResponse{
		Name:    "EnergyPlus HTTP API",
		Version: h.serverVersion,
		Status:  "running",
		Endpoints: map[string]string{
			"health":     "/health",
			"weather":    "/api/weather/*",
			"templates":  "/api/templates",
			"models":     "/api/models/*",
			"simulation": "/api/simulation/*",
			"files":      "/api/files/*",
			"export":     "/api/export/{destination}",
			"geometry":   "/api/geometry/*",
		},
	}, nil
}

func (h *EngineHandler) HealthService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.EngineHealthResponse, *error_handler.ErrorCollection) {
	h.logger.Debug("health check requested")

	return dto.EngineHealthResponse{
		Status:            "healthy",
		Timestamp:         timestamp(h.now()),
		EnergyPlusVersion: h.energyPlusVersion,
		ServerVersion:     h.serverVersion,
	}, nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
