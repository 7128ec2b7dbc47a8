package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"

	"simflow/commons/routes"
	"simflow/commons/server"
	"simflow/commons/settings"
	"simflow/internal/adapter/engineapi"
	adapter "simflow/internal/adapter/iface"
	cache "simflow/internal/cache/iface"
	runQueue "simflow/internal/consumer/run_queue/iface"
	discovery "simflow/internal/discovery/iface"
	zkDiscovery "simflow/internal/discovery/zk"
	"simflow/internal/handler"
	"simflow/internal/logger"
	"simflow/internal/repository/dynamodb"
	repository "simflow/internal/repository/iface"
	"simflow/internal/repository/memory"
	"simflow/internal/repository/postgres"
	internalRoutes "simflow/internal/routes"
	"simflow/internal/service"
	"simflow/internal/slack"

	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

type RunRepositoryParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Settings  *settings.Settings
	Logger    logger.Logger
	Dynamo    *awsdynamodb.Client `optional:"true"`
}

// ProvideRunRepository builds the run ledger selected by ledger.backend.
func ProvideRunRepository(p RunRepositoryParams) (repository.RunRepository, error) {
	cfg := p.Settings.Ledger

	switch cfg.Backend {
	case settings.LedgerDynamoDB:
		if p.Dynamo == nil {
			return nil, errors.New("dynamodb ledger requires a dynamodb client")
		}
		return dynamodb.NewRunRepository(p.Dynamo, cfg.Table, p.Logger), nil

	case settings.LedgerPostgres:
		ctx := context.Background()
		db, err := postgres.Open(ctx, postgres.Config{
			URL:          cfg.DatabaseURL,
			PingTimeout:  cfg.PingTimeout,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
		})
		if err != nil {
			return nil, fmt.Errorf("open ledger database: %w", err)
		}
		repo, err := postgres.NewRunRepository(ctx, db, cfg.Table, p.Logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		p.Lifecycle.Append(closeDB(db))
		return repo, nil

	default:
		p.Logger.Info("using in-memory run ledger")
		return memory.NewRunRepository(), nil
	}
}

func closeDB(db *sql.DB) fx.Hook {
	return fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	}
}

type RunGuardParams struct {
	fx.In

	Settings *settings.Settings
	Logger   logger.Logger
	Cache    cache.Cache `optional:"true"`
}

// ProvideRunGuard shares in-flight run ids through redis when it is enabled so
// several coordinator replicas reject the same duplicate.
func ProvideRunGuard(p RunGuardParams) service.RunGuard {
	if p.Cache == nil {
		return service.NewMemoryRunGuard()
	}
	return service.NewCacheRunGuard(p.Cache, p.Settings.Redis.GuardTTL, p.Logger)
}

type EngineResolverParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Settings  *settings.Settings
	Logger    logger.Logger
	Registry  discovery.Registry `optional:"true"`
}

// ProvideEngineResolver follows the engine URL published in ZooKeeper, or
// uses engine.base_url when discovery is off.
func ProvideEngineResolver(p EngineResolverParams) (discovery.EndpointResolver, error) {
	fallback := p.Settings.Engine.BaseURL
	if p.Registry == nil {
		return discovery.StaticResolver(fallback), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	resolver, err := zkDiscovery.NewWatchedResolver(ctx, p.Registry, p.Settings.ZooKeeper.EndpointPath, fallback, p.Logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("watch engine endpoint: %w", err)
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
	return resolver, nil
}

// ProvideEngineAdapters wires the pipeline stages to the engine's HTTP API.
func ProvideEngineAdapters(resolver discovery.EndpointResolver, log logger.Logger) adapter.Adapters {
	return engineapi.NewClient(resolver, &http.Client{}, log).Adapters()
}

func ProvideExportGate(log logger.Logger) service.ExportGate {
	return service.NewExportGate(log)
}

func ProvidePipelineCoordinator(
	adapters adapter.Adapters,
	gate service.ExportGate,
	s *settings.Settings,
	log logger.Logger,
) service.PipelineCoordinator {
	return service.NewPipelineCoordinator(adapters, gate, service.NewCoordinatorConfig(s), log)
}

func ProvideRunService(
	coordinator service.PipelineCoordinator,
	gate service.ExportGate,
	guard service.RunGuard,
	runs repository.RunRepository,
	publisher runQueue.RunPublisher,
	notifier slack.Client,
	s *settings.Settings,
	log logger.Logger,
) service.RunService {
	return service.NewRunService(coordinator, gate, guard, runs, publisher, notifier, s.Notify.Channel, log)
}

// ProvideRunExecutor hands queued runs to the run service.
func ProvideRunExecutor(runService service.RunService) runQueue.RunExecutor {
	return runService
}

func ProvideRunHandler(runService service.RunService, log logger.Logger) *handler.RunHandler {
	return handler.NewRunHandler(log, runService)
}

func ProvideCoordinatorHealthHandler(s *settings.Settings, resolver discovery.EndpointResolver, log logger.Logger) *handler.HealthHandler {
	return handler.NewHealthHandler(log, s.Service.Name, s.Service.Version, resolver)
}

// ProvideCoordinatorRouteInitializer creates route initializer for the coordinator
func ProvideCoordinatorRouteInitializer(
	healthHandler *handler.HealthHandler,
	runHandler *handler.RunHandler,
) func(*gin.Engine, routes.RouteDependencies) {
	return func(router *gin.Engine, deps routes.RouteDependencies) {
		internalRoutes.InitHealthRoutes(router, healthHandler, deps.Logger)
		internalRoutes.InitRunRoutes(router, runHandler, deps.Logger)
	}
}

func ManageCoordinatorLifecycle(lc fx.Lifecycle, srv *server.HTTPServer, resolver discovery.EndpointResolver, log logger.Logger) {
	// Referencing the server pulls its lifecycle hooks into the graph.
	_ = srv

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("coordinator ready", logger.String("engine_base_url", resolver.BaseURL()))
			return nil
		},
	})
}
