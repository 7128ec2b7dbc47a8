package routes

import (
	"slices"

	"simflow/commons/handler"
	"simflow/internal/logger"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	ServiceName string
	Version     string
	// DebugMode switches gin out of release mode.
	DebugMode bool
	// MaxBodyBytes caps request bodies; zero means the 10 MiB default.
	MaxBodyBytes int64
}

type RouteDependencies struct {
	Logger logger.Logger
}

type RouteOptions[InputDto any, OutputDto any] struct {
	Path        string
	Method      string
	ServiceFunc handler.ServiceFunc[InputDto, OutputDto]
}

var supportedMethods = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

const defaultMaxBodyBytes = 10 << 20

func NewRouter(config RouterConfig, deps RouteDependencies) *gin.Engine {
	if config.DebugMode {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}

	r := gin.New()
	log := deps.Logger.With(logger.String("service", config.ServiceName))

	r.Use(
		handler.RequestIDMiddleware(),
		handler.ServiceHeaderMiddleware(config.ServiceName, config.Version),
		handler.LoggingMiddleware(log),
		handler.ErrorHandlingMiddleware(log),
		handler.CORSMiddleware(),
		handler.BodyLimitMiddleware(config.MaxBodyBytes),
	)

	r.HandleMethodNotAllowed = true
	r.NoRoute(handler.NoRouteHandler())
	r.NoMethod(handler.NoMethodHandler())

	return r
}

// RegisterRoute mounts a JSON service function on group.
func RegisterRoute[InputDto any, OutputDto any](
	group gin.IRouter,
	deps RouteDependencies,
	options RouteOptions[InputDto, OutputDto],
) {
	handlerDeps := handler.HandlerDependencies{
		Logger: deps.Logger,
	}
	RegisterRawRoute(group, deps, options.Method, options.Path, handler.HandleFunc(handlerDeps, options.ServiceFunc))
}

// RegisterRawRoute mounts a plain gin handler, for responses that are not a
// JSON document such as file downloads.
func RegisterRawRoute(group gin.IRouter, deps RouteDependencies, method, path string, h gin.HandlerFunc) {
	if !slices.Contains(supportedMethods, method) {
		deps.Logger.Error("unsupported HTTP method",
			logger.String("method", method),
			logger.String("path", path))
		return
	}
	group.Handle(method, path, h)
}

// CreateAPIGroup returns /api/<version>, or /api for an empty version.
func CreateAPIGroup(router *gin.Engine, version string) *gin.RouterGroup {
	if version == "" {
		return router.Group("/api")
	}
	return router.Group("/api/" + version)
}
