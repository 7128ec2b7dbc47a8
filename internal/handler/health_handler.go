package handler

import (
	"context"

	"simflow/commons/error_handler"
	"simflow/commons/handler"
	discovery "simflow/internal/discovery/iface"
	"simflow/internal/dto"
	"simflow/internal/logger"
)

type HealthHandler struct {
	logger   logger.Logger
	service  string
	version  string
	resolver discovery.EndpointResolver
}

// NewHealthHandler reports coordinator liveness along with the engine URL
// runs are currently sent to.
func NewHealthHandler(log logger.Logger, service, version string, resolver discovery.EndpointResolver) *HealthHandler {
	return &HealthHandler{
		logger:   log.With(logger.String("component", "health_handler")),
		service:  service,
		version:  version,
		resolver: resolver,
	}
}

func (h *HealthHandler) HealthService(
	ctx context.Context,
	ioutil *handler.RequestIo[dto.EmptyRequest],
) (dto.HealthCheckResponse, *error_handler.ErrorCollection) {
	resp := dto.HealthCheckResponse{
		Status:  "healthy",
		Service: h.service,
		Version: h.version,
	}
	if h.resolver != nil {
		resp.EngineBaseURL = h.resolver.BaseURL()
	}
	return resp, nil
}
