package routes

import (
	"net/http"

	"simflow/commons/routes"
	"simflow/internal/dto"
	"simflow/internal/handler"
	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
)

// InitHealthRoutes serves the coordinator health check at /health and /api/v1/health.
func InitHealthRoutes(
	router *gin.Engine,
	healthHandler *handler.HealthHandler,
	log logger.Logger,
) {
	deps := routes.RouteDependencies{
		Logger: log,
	}

	for _, group := range []gin.IRouter{router, routes.CreateAPIGroup(router, "v1")} {
		routes.RegisterRoute(
			group,
			deps,
			routes.RouteOptions[dto.EmptyRequest, dto.HealthCheckResponse]{
				Path:        "/health",
				Method:      http.MethodGet,
				ServiceFunc: healthHandler.HealthService,
			},
		)
	}
}
